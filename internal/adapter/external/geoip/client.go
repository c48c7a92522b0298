package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Result is one geolocation lookup outcome. Latitude and longitude are nil
// when the provider returned no usable coordinates, including the
// private-network sentinel.
type Result struct {
	IP          string
	CountryCode string
	CountryName string
	City        string
	Region      string
	Latitude    *float64
	Longitude   *float64
	Timezone    string
	ASN         string
	ISP         string
	Org         string
}

// Private reports whether this result is the private-network sentinel.
func (r *Result) Private() bool {
	return r.CountryCode == "XX"
}

// Client looks up IP geolocation via ip-api.com (free tier: 45 requests
// per minute, no API key) with a local TTL cache.
type Client struct {
	httpClient *http.Client
	cache      *resultCache
	config     Config
}

// Config holds geoip client configuration.
type Config struct {
	Timeout      time.Duration
	CacheTTL     time.Duration
	MaxCacheSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		CacheTTL:     24 * time.Hour,
		MaxCacheSize: 10000,
	}
}

// NewClient creates a geoip client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxCacheSize == 0 {
		cfg.MaxCacheSize = 10000
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      newResultCache(cfg.MaxCacheSize),
		config:     cfg,
	}
}

// IsPrivateIP classifies private, loopback and reserved addresses. These
// must never reach the external service.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	// 240.0.0.0/4 is reserved and has no net.IP predicate.
	if ip4 := parsed.To4(); ip4 != nil && ip4[0] >= 240 {
		return true
	}
	return parsed.IsPrivate() || parsed.IsLoopback() ||
		parsed.IsLinkLocalUnicast() || parsed.IsMulticast() ||
		parsed.IsUnspecified()
}

// PrivateNetworkResult is the fixed sentinel for non-routable source IPs.
func PrivateNetworkResult(ip string) *Result {
	return &Result{
		IP:          ip,
		CountryCode: "XX",
		CountryName: "Private Network",
		City:        "Internal",
		ISP:         "Private Network",
		Org:         "Private Network",
	}
}

// ipAPIResponse mirrors the provider payload. Lat and Lon are pointers
// because a success can carry country data without coordinates, and 0,0
// is a valid coordinate pair.
type ipAPIResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Timezone    string   `json:"timezone"`
	ISP         string   `json:"isp"`
	Org         string   `json:"org"`
	AS          string   `json:"as"`
	Query       string   `json:"query"`
}

const lookupFields = "status,message,country,countryCode,region,regionName,city,lat,lon,timezone,isp,org,as,query"

// Lookup resolves geolocation for a public IP address. Private addresses
// short-circuit to the sentinel without a network call.
func (c *Client) Lookup(ctx context.Context, ip string) (*Result, error) {
	if IsPrivateIP(ip) {
		return PrivateNetworkResult(ip), nil
	}

	if cached, ok := c.cache.Get(ip); ok {
		return cached, nil
	}

	url := fmt.Sprintf("http://ip-api.com/json/%s?fields=%s", ip, lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrLookupFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", entity.ErrLookupFailure, resp.StatusCode)
	}

	var apiResp ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", entity.ErrLookupFailure, err)
	}
	if apiResp.Status != "success" {
		return nil, fmt.Errorf("%w: %s", entity.ErrLookupFailure, apiResp.Message)
	}

	result := &Result{
		IP:          ip,
		CountryCode: strings.ToUpper(apiResp.CountryCode),
		CountryName: apiResp.Country,
		City:        apiResp.City,
		Region:      apiResp.RegionName,
		Latitude:    apiResp.Lat,
		Longitude:   apiResp.Lon,
		Timezone:    apiResp.Timezone,
		ASN:         asNumber(apiResp.AS),
		ISP:         apiResp.ISP,
		Org:         apiResp.Org,
	}

	c.cache.Set(ip, result, c.config.CacheTTL)

	return result, nil
}

// asNumber extracts "AS12345" from the provider's "AS12345 Org Name" field.
func asNumber(as string) string {
	if as == "" {
		return ""
	}
	return strings.Fields(as)[0]
}

// CacheSize returns the number of cached lookups.
func (c *Client) CacheSize() int {
	return c.cache.Size()
}

// resultCache is a thread-safe TTL cache for lookup results.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

func newResultCache(maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
	}
}

func (c *resultCache) Get(ip string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ip]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) Set(ip string, result *Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// At capacity, drop an arbitrary 10% rather than tracking recency.
	if len(c.entries) >= c.maxSize {
		toDelete := c.maxSize / 10
		for key := range c.entries {
			delete(c.entries, key)
			toDelete--
			if toDelete <= 0 {
				break
			}
		}
	}

	c.entries[ip] = &cacheEntry{result: result, expiresAt: time.Now().Add(ttl)}
}

func (c *resultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
