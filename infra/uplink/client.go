// Package uplink implements the remote logging endpoint boundary: a
// GET-style request carrying six decimal-formatted fields per estimation
// cycle. Delivery is fire-and-forget; the estimation engine never learns
// whether a write was accepted.
package uplink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/infra/logger"
)

// Config defines the remote logging endpoint parameters.
type Config struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`
	// TimeoutSeconds bounds one delivery attempt.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// Validate checks mandatory fields when the uplink is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("uplink url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("uplink url: %w", err)
	}
	return nil
}

// Client sends estimation results to the endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
}

// NewClient creates a Client for the configured endpoint.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  logger.New("uplink"),
	}
}

// Send delivers one result. Any transport error or rejection body is
// returned for recording, but callers treat it as non-fatal: the next
// estimation cycle proceeds regardless.
func (c *Client) Send(ctx context.Context, res model.EstimationResult) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(res), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Errorf("close response body: %v", err)
		}
	}()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("uplink rejected write: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	// The endpoint rejects throttled or overfull writes with a plain-text
	// message instead of a status code.
	if msg := strings.TrimSpace(string(body)); strings.HasPrefix(msg, "rejected") {
		return fmt.Errorf("uplink rejected write: %s", msg)
	}
	return nil
}

// requestURL encodes the six decimal fields the endpoint expects: voltage,
// current, temperature, SOC%, SOH%, RUL-hours. An unbounded RUL is sent as
// an empty field.
func (c *Client) requestURL(res model.EstimationResult) string {
	q := url.Values{}
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	q.Set("field1", formatField(res.Reading.VoltageVolts))
	q.Set("field2", formatField(res.Reading.CurrentAmps))
	q.Set("field3", formatField(res.Reading.TemperatureC))
	q.Set("field4", formatField(res.SOC*100))
	q.Set("field5", formatField(res.SOH*100))
	if model.RULIsUnbounded(res.RULHours) {
		q.Set("field6", "")
	} else {
		q.Set("field6", formatField(res.RULHours))
	}
	return strings.TrimSuffix(c.cfg.URL, "/") + "/update?" + q.Encode()
}

func formatField(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
