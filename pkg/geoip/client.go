package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

const (
	defaultBaseURL             = "http://ip-api.com/json"
	defaultTimeout             = 3 * time.Second
	responseFields             = "status,message,countryCode,regionName,city"
	errorBodyReadLimit   int64 = 1024
)

// Location is the coarse position of an IP address.
type Location struct {
	IP          string `json:"ip"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// Client calls an ip-api.com compatible JSON endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the lookup endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Lookup resolves ip to a Location.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geolocation client not configured")
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ip is required")
	}

	endpoint := fmt.Sprintf("%s/%s?fields=%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(ip), responseFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geolocation request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geolocation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geolocation request failed")
	}

	var apiResp struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		CountryCode string `json:"countryCode"`
		RegionName  string `json:"regionName"`
		City        string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geolocation response")
	}
	if apiResp.Status != "" && apiResp.Status != "success" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geolocation lookup failed").
			WithDetails(map[string]any{"reason": apiResp.Message})
	}

	return &Location{
		IP:          ip,
		CountryCode: apiResp.CountryCode,
		Region:      apiResp.RegionName,
		City:        apiResp.City,
	}, nil
}
