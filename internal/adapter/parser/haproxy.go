package parser

import (
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// HAProxyParser parses HAProxy HTTP log lines, e.g.
//
//	192.168.1.100:54321 [01/Jan/2024:12:00:00.000] frontend backend/server1 0/0/0/12/12 200 1234 - - ---- 1/1/0/0/0 0/0 "GET /api/test HTTP/1.1"
type HAProxyParser struct{}

var haproxyPattern = regexp.MustCompile(
	`^(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(?P<port>\d+)\s+` +
		`\[(?P<timestamp>[^\]]+)\]\s+` +
		`(?P<frontend>\S+)\s+` +
		`(?P<backend>\S+)/(?P<server>\S+)\s+` +
		`(?P<tq>-?\d+)/(?P<tw>-?\d+)/(?P<tc>-?\d+)/(?P<tr>-?\d+)/(?P<tt>\d+)\s+` +
		`(?P<status>\d+)\s+` +
		`(?P<bytes>\d+)\s+` +
		`.*?"(?P<request>[^"]*)"`)

const haproxyTimeLayout = "02/Jan/2006:15:04:05"

func NewHAProxyParser() *HAProxyParser {
	return &HAProxyParser{}
}

func (p *HAProxyParser) SourceType() entity.SourceType {
	return entity.SourceHAProxy
}

func (p *HAProxyParser) Parse(rawLine string) (*entity.SecurityEvent, error) {
	line := strings.TrimSpace(rawLine)

	m := haproxyPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, entity.ErrParseFailure
	}
	g := namedGroups(haproxyPattern, m)

	if net.ParseIP(g["ip"]) == nil {
		return nil, entity.ErrParseFailure
	}

	// Accept datetime format "01/Jan/2024:12:00:00.000"; millis are dropped.
	// Unparseable timestamps fall back to now rather than rejecting the line.
	ts := time.Now().UTC()
	if t, err := time.Parse(haproxyTimeLayout, strings.SplitN(g["timestamp"], ".", 2)[0]); err == nil {
		ts = t.UTC()
	}

	method, path := splitRequestLine(g["request"])
	status, _ := strconv.Atoi(g["status"])
	bytesSent, _ := strconv.ParseUint(g["bytes"], 10, 64)
	srcPort, _ := strconv.ParseUint(g["port"], 10, 16)
	action, severity := actionSeverityForStatus(status)

	return &entity.SecurityEvent{
		SourceType: entity.SourceHAProxy,
		SourceHost: g["server"],
		Timestamp:  ts,
		SrcIP:      g["ip"],
		SrcPort:    uint16(srcPort),
		Method:     method,
		Path:       path,
		StatusCode: uint16(status),
		BytesSent:  bytesSent,
		Action:     action,
		Severity:   severity,
		RawLog:     line,
		Metadata: map[string]string{
			"frontend": g["frontend"],
			"backend":  g["backend"],
			"timings":  g["tq"] + "/" + g["tw"] + "/" + g["tc"] + "/" + g["tr"] + "/" + g["tt"],
		},
	}, nil
}

// splitRequestLine splits an HTTP request line like "GET /path HTTP/1.1".
func splitRequestLine(request string) (method, path string) {
	parts := strings.Split(request, " ")
	if len(parts) > 0 {
		method = parts[0]
	}
	if len(parts) > 1 {
		path = parts[1]
	}
	return method, path
}

// namedGroups maps the named submatches of re onto their captured values.
func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
