package parser

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// CrowdSecParser parses CrowdSec decisions (JSON), e.g.
//
//	{"duration":"4h","id":1234,"origin":"cscli","scenario":"crowdsecurity/http-bad-user-agent","scope":"Ip","type":"ban","value":"192.168.1.100"}
type CrowdSecParser struct{}

type crowdsecDecision struct {
	ID       int64  `json:"id"`
	Origin   string `json:"origin"`
	Scenario string `json:"scenario"`
	Scope    string `json:"scope"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Duration string `json:"duration"`
}

func NewCrowdSecParser() *CrowdSecParser {
	return &CrowdSecParser{}
}

func (p *CrowdSecParser) SourceType() entity.SourceType {
	return entity.SourceCrowdSec
}

func (p *CrowdSecParser) Parse(rawLine string) (*entity.SecurityEvent, error) {
	line := strings.TrimSpace(rawLine)

	var d crowdsecDecision
	if err := json.Unmarshal([]byte(line), &d); err != nil {
		return nil, entity.ErrParseFailure
	}
	if d.Value == "" || d.Type == "" {
		return nil, entity.ErrParseFailure
	}
	if net.ParseIP(d.Value) == nil {
		return nil, entity.ErrParseFailure
	}

	var action string
	switch strings.ToLower(d.Type) {
	case "ban":
		action = entity.ActionBan
	case "captcha":
		action = entity.ActionChallenge
	case "throttle":
		action = entity.ActionRateLimit
	default:
		action = entity.ActionDeny
	}

	scenario := strings.ToLower(d.Scenario)
	var severity string
	switch {
	case strings.Contains(scenario, "exploit") || strings.Contains(scenario, "cve"):
		severity = entity.SeverityCritical
	case strings.Contains(scenario, "attack") || strings.Contains(scenario, "scan"):
		severity = entity.SeverityHigh
	default:
		severity = entity.SeverityMedium
	}

	reason := d.Scenario
	if reason == "" {
		reason = "Unknown scenario"
	}
	sourceHost := d.Origin
	if sourceHost == "" {
		sourceHost = "crowdsec"
	}
	scope := d.Scope
	if scope == "" {
		scope = "Ip"
	}

	// Decisions carry no event timestamp.
	return &entity.SecurityEvent{
		SourceType: entity.SourceCrowdSec,
		SourceHost: sourceHost,
		Timestamp:  time.Now().UTC(),
		SrcIP:      d.Value,
		Action:     action,
		Severity:   severity,
		Reason:     reason,
		RawLog:     line,
		Metadata: map[string]string{
			"decision_id": strconv.FormatInt(d.ID, 10),
			"duration":    d.Duration,
			"scope":       scope,
			"scenario":    d.Scenario,
			"origin":      d.Origin,
		},
	}, nil
}
