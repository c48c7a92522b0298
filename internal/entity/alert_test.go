package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscalatedSeverity(t *testing.T) {
	tests := []struct {
		count, threshold int
		want             string
	}{
		{10, 10, SeverityLow},
		{14, 10, SeverityLow},
		{15, 10, SeverityMedium},
		{20, 10, SeverityHigh},
		{29, 10, SeverityHigh},
		{30, 10, SeverityCritical},
		{35, 10, SeverityCritical},
		{12, 5, SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscalatedSeverity(tt.count, tt.threshold),
			"count=%d threshold=%d", tt.count, tt.threshold)
	}
}

func TestInCooldown(t *testing.T) {
	now := time.Now().UTC()

	rule := AlertRule{CooldownMinutes: 15}
	assert.False(t, rule.InCooldown(now), "never triggered")

	recent := now.Add(-5 * time.Minute)
	rule.LastTriggered = &recent
	assert.True(t, rule.InCooldown(now))

	old := now.Add(-16 * time.Minute)
	rule.LastTriggered = &old
	assert.False(t, rule.InCooldown(now))
}

func TestRuleFilterWindow(t *testing.T) {
	now := time.Now().UTC()
	rule := AlertRule{TimeWindowMinutes: 15, SourceType: "nginx", Severity: "high"}

	f := rule.Filter(now)
	assert.Equal(t, now.Add(-15*time.Minute), f.StartTime)
	assert.Equal(t, now, f.EndTime)
	assert.Equal(t, "nginx", f.SourceType)
	assert.Equal(t, "high", f.Severity)
	assert.Empty(t, f.SrcIP)
}
