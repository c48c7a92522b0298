package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frclabs/reportcenter/internal/entity"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, source := range []string{"haproxy", "nginx", "crowdsec", "fail2ban"} {
		p, err := r.Get(source)
		require.NoError(t, err)
		assert.Equal(t, entity.SourceType(source), p.SourceType())
	}

	_, err := r.Get("syslog")
	require.ErrorIs(t, err, entity.ErrUnknownSource)
}

func TestHAProxyParser(t *testing.T) {
	p := NewHAProxyParser()

	line := `192.168.1.100:54321 [01/Jan/2024:12:00:00.000] frontend backend/server1 0/0/0/12/12 200 1234 - - ---- 1/1/0/0/0 0/0 "GET /api/test HTTP/1.1"`
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceHAProxy, ev.SourceType)
	assert.Equal(t, "192.168.1.100", ev.SrcIP)
	assert.Equal(t, uint16(54321), ev.SrcPort)
	assert.Equal(t, "GET", ev.Method)
	assert.Equal(t, "/api/test", ev.Path)
	assert.Equal(t, uint16(200), ev.StatusCode)
	assert.Equal(t, uint64(1234), ev.BytesSent)
	assert.Equal(t, "server1", ev.SourceHost)
	assert.Equal(t, entity.ActionAllow, ev.Action)
	assert.Equal(t, entity.SeverityLow, ev.Severity)
	assert.Equal(t, line, ev.RawLog)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "frontend", ev.Metadata["frontend"])
	assert.Equal(t, "backend", ev.Metadata["backend"])
}

func TestHAProxyParserServerError(t *testing.T) {
	p := NewHAProxyParser()

	line := `10.0.0.5:1234 [01/Jan/2024:12:00:00.000] fe be/srv 0/0/0/5/5 500 0 - - ---- 1/1/0/0/0 0/0 "POST /login HTTP/1.1"`
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, entity.ActionDeny, ev.Action)
	assert.Equal(t, entity.SeverityHigh, ev.Severity)
}

func TestHAProxyParserMalformed(t *testing.T) {
	p := NewHAProxyParser()

	_, err := p.Parse("not an haproxy line")
	require.ErrorIs(t, err, entity.ErrParseFailure)
}

func TestHTTPStatusTable(t *testing.T) {
	tests := []struct {
		status   int
		action   string
		severity string
	}{
		{200, entity.ActionAllow, entity.SeverityLow},
		{301, entity.ActionAllow, entity.SeverityLow},
		{403, entity.ActionDeny, entity.SeverityMedium},
		{404, entity.ActionDeny, entity.SeverityLow},
		{429, entity.ActionRateLimit, entity.SeverityMedium},
		{500, entity.ActionDeny, entity.SeverityHigh},
		{503, entity.ActionDeny, entity.SeverityHigh},
	}

	for _, tt := range tests {
		action, severity := actionSeverityForStatus(tt.status)
		assert.Equal(t, tt.action, action, "status %d", tt.status)
		assert.Equal(t, tt.severity, severity, "status %d", tt.status)
	}
}

func TestNginxParserCombined(t *testing.T) {
	p := NewNginxParser()

	line := `192.168.1.100 - - [01/Jan/2024:12:00:00 +0000] "GET /api/test HTTP/1.1" 200 1234 "-" "Mozilla/5.0"`
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceNginx, ev.SourceType)
	assert.Equal(t, "192.168.1.100", ev.SrcIP)
	assert.Equal(t, "GET", ev.Method)
	assert.Equal(t, "/api/test", ev.Path)
	assert.Equal(t, uint16(200), ev.StatusCode)
	assert.Equal(t, "Mozilla/5.0", ev.UserAgent)
	assert.Equal(t, "", ev.Metadata["referer"])
	assert.Equal(t, line, ev.RawLog)
}

func TestNginxParserCommonFallback(t *testing.T) {
	p := NewNginxParser()

	line := `10.1.2.3 - admin [01/Jan/2024:12:00:00 +0000] "DELETE /admin HTTP/1.1" 403 0`
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, "10.1.2.3", ev.SrcIP)
	assert.Equal(t, entity.ActionDeny, ev.Action)
	assert.Equal(t, entity.SeverityMedium, ev.Severity)
	assert.Equal(t, "admin", ev.Metadata["remote_user"])
	assert.Empty(t, ev.UserAgent)
}

func TestNginxParserRateLimited(t *testing.T) {
	p := NewNginxParser()

	line := `203.0.113.7 - - [01/Jan/2024:12:00:00 +0000] "GET / HTTP/1.1" 429 162 "-" "curl/8.0"`
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, entity.ActionRateLimit, ev.Action)
	assert.Equal(t, entity.SeverityMedium, ev.Severity)
}

func TestCrowdSecParser(t *testing.T) {
	p := NewCrowdSecParser()

	tests := []struct {
		name     string
		line     string
		action   string
		severity string
		reason   string
	}{
		{
			name:     "ban decision",
			line:     `{"duration":"4h","id":1234,"origin":"cscli","scenario":"crowdsecurity/http-bad-user-agent","scope":"Ip","type":"ban","value":"203.0.113.9"}`,
			action:   entity.ActionBan,
			severity: entity.SeverityMedium,
			reason:   "crowdsecurity/http-bad-user-agent",
		},
		{
			name:     "captcha maps to challenge",
			line:     `{"type":"captcha","value":"203.0.113.9","scenario":"crowdsecurity/http-probing-scan"}`,
			action:   entity.ActionChallenge,
			severity: entity.SeverityHigh,
			reason:   "crowdsecurity/http-probing-scan",
		},
		{
			name:     "throttle maps to rate_limit",
			line:     `{"type":"throttle","value":"203.0.113.9","scenario":"crowdsecurity/slow-bruteforce"}`,
			action:   entity.ActionRateLimit,
			severity: entity.SeverityMedium,
			reason:   "crowdsecurity/slow-bruteforce",
		},
		{
			name:     "unknown type maps to deny",
			line:     `{"type":"notify","value":"203.0.113.9","scenario":"crowdsecurity/cve-2021-41773-exploit"}`,
			action:   entity.ActionDeny,
			severity: entity.SeverityCritical,
			reason:   "crowdsecurity/cve-2021-41773-exploit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := p.Parse(tt.line)
			require.NoError(t, err)

			assert.Equal(t, "203.0.113.9", ev.SrcIP)
			assert.Equal(t, tt.action, ev.Action)
			assert.Equal(t, tt.severity, ev.Severity)
			assert.Equal(t, tt.reason, ev.Reason)
		})
	}
}

func TestCrowdSecParserRejects(t *testing.T) {
	p := NewCrowdSecParser()

	for _, line := range []string{
		"not json",
		`{"type":"ban"}`,
		`{"value":"1.2.3.4"}`,
		`{"type":"ban","value":"not-an-ip"}`,
	} {
		_, err := p.Parse(line)
		assert.ErrorIs(t, err, entity.ErrParseFailure, "line %q", line)
	}
}

func TestFail2banParser(t *testing.T) {
	p := NewFail2banParser()

	line := "2024-01-01 12:00:00 fail2ban.actions: [sshd] Ban 192.168.1.100"
	ev, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceFail2ban, ev.SourceType)
	assert.Equal(t, "192.168.1.100", ev.SrcIP)
	assert.Equal(t, entity.ActionBan, ev.Action)
	assert.Equal(t, entity.SeverityHigh, ev.Severity)
	assert.Equal(t, "SSH Brute Force", ev.Reason)
	assert.Equal(t, "sshd", ev.Metadata["jail"])
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestFail2banParserShortFormat(t *testing.T) {
	p := NewFail2banParser()

	ev, err := p.Parse("[nginx-limit-req] BAN 10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, entity.ActionBan, ev.Action)
	assert.Equal(t, "Nginx Rate Limit", ev.Reason)
	// No timestamp in the line, fall back to now.
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, 5*time.Second)
}

func TestFail2banParserUnban(t *testing.T) {
	p := NewFail2banParser()

	ev, err := p.Parse("2024-01-01 12:00:00,123 fail2ban.actions [1234]: NOTICE [sshd] Unban 192.168.1.100")
	require.NoError(t, err)

	assert.Equal(t, entity.ActionAllow, ev.Action)
	assert.Equal(t, entity.SeverityLow, ev.Severity)
}

func TestFail2banParserUnknownJail(t *testing.T) {
	p := NewFail2banParser()

	ev, err := p.Parse("[mysqld-auth] Ban 10.0.0.2")
	require.NoError(t, err)

	assert.Equal(t, "Fail2ban: mysqld-auth", ev.Reason)
}

func TestFail2banParserDuration(t *testing.T) {
	p := NewFail2banParser()

	ev, err := p.Parse("2024-01-01 12:00:00 fail2ban.actions: [nginx-botsearch] Ban 10.0.0.3 (duration: 3600s)")
	require.NoError(t, err)

	assert.Equal(t, "3600", ev.Metadata["duration_seconds"])
}

func TestFail2banParserMalformed(t *testing.T) {
	p := NewFail2banParser()

	_, err := p.Parse("some random log line")
	require.ErrorIs(t, err, entity.ErrParseFailure)
}
