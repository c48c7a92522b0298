package geoip

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"192.168.1.100", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"224.0.0.1", true},
		{"239.255.255.250", true},
		{"240.0.0.1", true},
		{"255.255.255.255", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1", true},
		{"ff02::1", true},
		{"8.8.8.8", false},
		{"203.0.113.9", false},
		{"2001:4860:4860::8888", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.private, IsPrivateIP(tt.ip), "ip %s", tt.ip)
	}
}

func TestLookupPrivateIPNoNetworkCall(t *testing.T) {
	// The nanosecond timeout makes any real request fail; private IPs
	// must short-circuit before the transport.
	c := NewClient(Config{Timeout: time.Nanosecond})

	result, err := c.Lookup(context.Background(), "192.168.1.100")
	require.NoError(t, err)

	assert.Equal(t, "XX", result.CountryCode)
	assert.Equal(t, "Private Network", result.CountryName)
	assert.Nil(t, result.Latitude)
	assert.Nil(t, result.Longitude)
	assert.True(t, result.Private())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func clientReturning(body string) *Client {
	c := NewClient(Config{})
	c.httpClient.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})
	return c
}

func TestLookupParsesCoordinates(t *testing.T) {
	c := clientReturning(`{"status":"success","country":"France","countryCode":"fr",` +
		`"city":"Paris","lat":48.8566,"lon":2.3522,"as":"AS12876 Scaleway"}`)

	result, err := c.Lookup(context.Background(), "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, "FR", result.CountryCode)
	require.NotNil(t, result.Latitude)
	require.NotNil(t, result.Longitude)
	assert.InDelta(t, 48.8566, *result.Latitude, 0.0001)
	assert.InDelta(t, 2.3522, *result.Longitude, 0.0001)
	assert.Equal(t, "AS12876", result.ASN)
}

func TestLookupSuccessWithoutCoordinates(t *testing.T) {
	// A success payload with only country and city data must not invent
	// a 0,0 location.
	c := clientReturning(`{"status":"success","country":"Nowhere","countryCode":"NW","city":"Void"}`)

	result, err := c.Lookup(context.Background(), "203.0.113.10")
	require.NoError(t, err)

	assert.Equal(t, "NW", result.CountryCode)
	assert.Equal(t, "Void", result.City)
	assert.Nil(t, result.Latitude)
	assert.Nil(t, result.Longitude)
}

func TestASNumber(t *testing.T) {
	assert.Equal(t, "AS15169", asNumber("AS15169 Google LLC"))
	assert.Equal(t, "", asNumber(""))
}

func TestResultCache(t *testing.T) {
	cache := newResultCache(100)

	_, ok := cache.Get("1.1.1.1")
	assert.False(t, ok)

	cache.Set("1.1.1.1", &Result{IP: "1.1.1.1", CountryCode: "AU"}, time.Hour)
	got, ok := cache.Get("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, "AU", got.CountryCode)

	cache.Set("2.2.2.2", &Result{IP: "2.2.2.2"}, -time.Second)
	_, ok = cache.Get("2.2.2.2")
	assert.False(t, ok, "expired entries are misses")
}
