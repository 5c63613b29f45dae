package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"world-state-engine/internal/adapters/metrics"
	"world-state-engine/internal/core/domain"
)

// Client reads reference data from a remote catalog service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewMetricsRoundTripper(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) GetSkill(ctx context.Context, skillID string) (*domain.SkillDefinition, error) {
	var data domain.SkillDefinition
	if err := c.getAndDecode(ctx, "skills", skillID, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) GetZone(ctx context.Context, zoneID string) (*domain.ZoneDefinition, error) {
	var data domain.ZoneDefinition
	if err := c.getAndDecode(ctx, "zones", zoneID, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) GetTemplate(ctx context.Context, templateCode string) (*domain.TemplateDefinition, error) {
	var data domain.TemplateDefinition
	if err := c.getAndDecode(ctx, "templates", templateCode, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) getAndDecode(ctx context.Context, kind, key string, dest any) error {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, kind, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("fetch %s: unexpected status code: %d", kind, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

type MetricsRoundTripper struct {
	Proxied http.RoundTripper
}

func NewMetricsRoundTripper(proxied http.RoundTripper) *MetricsRoundTripper {
	if proxied == nil {
		proxied = http.DefaultTransport
	}
	return &MetricsRoundTripper{Proxied: proxied}
}

func (mrt *MetricsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := mrt.Proxied.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	endpoint := "unknown"
	switch {
	case strings.Contains(req.URL.Path, "/skills/"):
		endpoint = "skill"
	case strings.Contains(req.URL.Path, "/zones/"):
		endpoint = "zone"
	case strings.Contains(req.URL.Path, "/templates/"):
		endpoint = "template"
	}

	metrics.CatalogRequestDuration.WithLabelValues(endpoint, status).Observe(duration)
	metrics.CatalogRequests.WithLabelValues(endpoint, status).Inc()

	return resp, err
}
