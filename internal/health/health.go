// Package health polls the deployed application until it reports healthy.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const healthyStatus = "healthy"

// Report is the subset of the /health response the check reads.
type Report struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	Uptime            string `json:"uptime"`
	RequestsProcessed int64  `json:"requests_processed"`
}

type Checker struct {
	client   *http.Client
	interval time.Duration
}

type Option func(*Checker)

func WithClient(c *http.Client) Option {
	return func(ch *Checker) { ch.client = c }
}

func WithInterval(d time.Duration) Option {
	return func(ch *Checker) { ch.interval = d }
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL joins a base service address and a health path. A base without a
// scheme is treated as http.
func URL(base, path string) string {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if path == "" {
		path = "/health"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Check fetches url once.
func (c *Checker) Check(ctx context.Context, url string) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Report{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	var r Report
	if err := json.Unmarshal(body, &r); err != nil {
		return Report{}, fmt.Errorf("decoding health response: %w", err)
	}
	if r.Status != healthyStatus {
		return r, fmt.Errorf("status is %q", r.Status)
	}
	return r, nil
}

// Wait polls url until it reports healthy or timeout passes.
func (c *Checker) Wait(ctx context.Context, url string, timeout time.Duration) (Report, error) {
	var (
		report Report
		last   error
	)
	err := wait.PollUntilContextTimeout(ctx, c.interval, timeout, true, func(ctx context.Context) (bool, error) {
		r, err := c.Check(ctx, url)
		if err != nil {
			last = err
			return false, nil
		}
		report = r
		return true, nil
	})
	if err != nil {
		if last != nil && !errors.Is(last, context.Canceled) {
			return Report{}, fmt.Errorf("%s did not become healthy within %s: %w", url, timeout, last)
		}
		return Report{}, fmt.Errorf("%s did not become healthy within %s: %w", url, timeout, err)
	}
	return report, nil
}
