package parser

import (
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// NginxParser parses Nginx access logs. The combined format is tried first,
// then the common format without referer/user-agent:
//
//	$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"
type NginxParser struct{}

var (
	nginxCombinedPattern = regexp.MustCompile(
		`^(?P<addr>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\s+` +
			`-\s+` +
			`(?P<user>\S+)\s+` +
			`\[(?P<time>[^\]]+)\]\s+` +
			`"(?P<request>[^"]*)"\s+` +
			`(?P<status>\d+)\s+` +
			`(?P<bytes>\d+)\s+` +
			`"(?P<referer>[^"]*)"\s+` +
			`"(?P<agent>[^"]*)"`)

	nginxCommonPattern = regexp.MustCompile(
		`^(?P<addr>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\s+` +
			`-\s+` +
			`(?P<user>\S+)\s+` +
			`\[(?P<time>[^\]]+)\]\s+` +
			`"(?P<request>[^"]*)"\s+` +
			`(?P<status>\d+)\s+` +
			`(?P<bytes>\d+)`)
)

const nginxTimeLayout = "02/Jan/2006:15:04:05"

func NewNginxParser() *NginxParser {
	return &NginxParser{}
}

func (p *NginxParser) SourceType() entity.SourceType {
	return entity.SourceNginx
}

func (p *NginxParser) Parse(rawLine string) (*entity.SecurityEvent, error) {
	line := strings.TrimSpace(rawLine)

	re := nginxCombinedPattern
	m := re.FindStringSubmatch(line)
	if m == nil {
		re = nginxCommonPattern
		m = re.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, entity.ErrParseFailure
	}
	g := namedGroups(re, m)

	if net.ParseIP(g["addr"]) == nil {
		return nil, entity.ErrParseFailure
	}

	// "01/Jan/2024:12:00:00 +0000": the zone offset is dropped and a
	// parse failure falls back to now.
	ts := time.Now().UTC()
	if t, err := time.Parse(nginxTimeLayout, strings.SplitN(g["time"], " ", 2)[0]); err == nil {
		ts = t.UTC()
	}

	method, path := splitRequestLine(g["request"])
	status, _ := strconv.Atoi(g["status"])
	bytesSent, _ := strconv.ParseUint(g["bytes"], 10, 64)
	action, severity := actionSeverityForStatus(status)

	userAgent := g["agent"]
	if userAgent == "-" {
		userAgent = ""
	}
	referer := g["referer"]
	if referer == "-" {
		referer = ""
	}
	remoteUser := g["user"]
	if remoteUser == "-" {
		remoteUser = ""
	}

	return &entity.SecurityEvent{
		SourceType: entity.SourceNginx,
		SourceHost: "nginx",
		Timestamp:  ts,
		SrcIP:      g["addr"],
		Method:     method,
		Path:       path,
		StatusCode: uint16(status),
		BytesSent:  bytesSent,
		UserAgent:  userAgent,
		Action:     action,
		Severity:   severity,
		RawLog:     line,
		Metadata: map[string]string{
			"remote_user":  remoteUser,
			"referer":      referer,
			"request_full": g["request"],
		},
	}, nil
}
