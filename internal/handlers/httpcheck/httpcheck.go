// Package httpcheck builds errand callables that issue an HTTP request and
// fail on transport errors or 4xx/5xx responses.
package httpcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"errands/internal/domain"
)

type Params struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Body    string            `mapstructure:"body"`
	Timeout int               `mapstructure:"timeout"` // seconds
}

func New(params map[string]any) (domain.Callable, error) {
	var p Params
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("http params: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("http params: url is required")
	}
	if p.Method == "" {
		p.Method = http.MethodGet
	}
	if p.Timeout <= 0 {
		p.Timeout = 30
	}

	client := &http.Client{Timeout: time.Duration(p.Timeout) * time.Second}

	return func(ctx context.Context) error {
		var body io.Reader
		if p.Body != "" {
			body = strings.NewReader(p.Body)
		}
		req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
		if err != nil {
			return fmt.Errorf("build HTTP request: %w", err)
		}
		for key, value := range p.Headers {
			req.Header.Set(key, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP %d error: %s", resp.StatusCode, string(respBody))
		}
		return nil
	}, nil
}
