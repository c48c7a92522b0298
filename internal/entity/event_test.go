package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryFlagEmoji(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"FR", "🇫🇷"},
		{"US", "🇺🇸"},
		{"XX", "🏠"},
		{"", "🌍"},
		{"FRA", "🌍"},
	}
	for _, tt := range tests {
		e := SecurityEvent{CountryCode: tt.code}
		assert.Equal(t, tt.want, e.CountryFlagEmoji(), "code=%q", tt.code)
	}
}

func TestHasCoordinates(t *testing.T) {
	lat, lon := 48.85, 2.35

	var e SecurityEvent
	assert.False(t, e.HasCoordinates())

	e.Latitude = &lat
	assert.False(t, e.HasCoordinates(), "latitude alone is not enough")

	e.Longitude = &lon
	assert.True(t, e.HasCoordinates())
}
