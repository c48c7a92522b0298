package parser

import (
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Fail2banParser parses Fail2ban action logs. Two formats are tried in
// order, both case-insensitive on the action keyword:
//
//	2024-01-01 12:00:00,123 fail2ban.actions [1234]: NOTICE [sshd] Ban 192.168.1.100
//	[sshd] Ban 192.168.1.100
type Fail2banParser struct{}

var (
	fail2banFullPattern = regexp.MustCompile(
		`(?i)^(?P<timestamp>\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})[,\s]+.*?` +
			`\[(?P<jail>[^\]]+)\]\s+` +
			`(?P<action>ban|unban)\s+` +
			`(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

	fail2banShortPattern = regexp.MustCompile(
		`(?i)^\[(?P<jail>[^\]]+)\]\s+` +
			`(?P<action>ban|unban)\s+` +
			`(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

	fail2banDurationPattern = regexp.MustCompile(`duration:\s*(\d+)s`)
)

const fail2banTimeLayout = "2006-01-02 15:04:05"

// jailLabels maps common jail names to human-readable reasons. Unmapped
// jails fall back to "Fail2ban: {jail}".
var jailLabels = map[string]string{
	"sshd":            "SSH Brute Force",
	"nginx-limit-req": "Nginx Rate Limit",
	"nginx-botsearch": "Nginx Bot Search",
	"apache-auth":     "Apache Authentication",
	"dovecot":         "Dovecot Mail",
	"postfix":         "Postfix SMTP",
}

func NewFail2banParser() *Fail2banParser {
	return &Fail2banParser{}
}

func (p *Fail2banParser) SourceType() entity.SourceType {
	return entity.SourceFail2ban
}

func (p *Fail2banParser) Parse(rawLine string) (*entity.SecurityEvent, error) {
	line := strings.TrimSpace(rawLine)

	re := fail2banFullPattern
	m := re.FindStringSubmatch(line)
	hasTimestamp := true
	if m == nil {
		re = fail2banShortPattern
		m = re.FindStringSubmatch(line)
		hasTimestamp = false
	}
	if m == nil {
		return nil, entity.ErrParseFailure
	}
	g := namedGroups(re, m)

	if net.ParseIP(g["ip"]) == nil {
		return nil, entity.ErrParseFailure
	}

	ts := time.Now().UTC()
	if hasTimestamp {
		if t, err := time.Parse(fail2banTimeLayout, g["timestamp"]); err == nil {
			ts = t.UTC()
		}
	}

	var action, severity string
	if strings.EqualFold(g["action"], "ban") {
		action = entity.ActionBan
		severity = entity.SeverityHigh
	} else {
		action = entity.ActionAllow
		severity = entity.SeverityLow
	}

	jail := g["jail"]
	reason, ok := jailLabels[jail]
	if !ok {
		reason = "Fail2ban: " + jail
	}

	metadata := map[string]string{
		"jail":            jail,
		"fail2ban_action": g["action"],
	}
	if dm := fail2banDurationPattern.FindStringSubmatch(line); dm != nil {
		metadata["duration_seconds"] = dm[1]
	}

	return &entity.SecurityEvent{
		SourceType: entity.SourceFail2ban,
		SourceHost: "fail2ban",
		Timestamp:  ts,
		SrcIP:      g["ip"],
		Action:     action,
		Severity:   severity,
		Reason:     reason,
		RawLog:     line,
		Metadata:   metadata,
	}, nil
}
