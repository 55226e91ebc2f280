// Package client submits snippets to a running litrun evaluation service.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"litrun/runtime"
)

// Config holds the client configuration with declarative tags.
type Config struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries  int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
	RetryWaitMS int           `yaml:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
	Debug       bool          `yaml:"debug" default:"false"`
}

// Client talks to the /eval endpoint of an evaluation service.
type Client struct {
	config Config
	http   *resty.Client
}

// New creates a client, applying defaults and validating the config.
func New(cfg Config) (*Client, error) {
	if err := runtime.InitializeConfig(&cfg, nil); err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)

	return &Client{config: cfg, http: httpClient}, nil
}

// Eval submits one snippet and returns the formatted blocks.
func (c *Client) Eval(ctx context.Context, req runtime.EvalRequest) (runtime.EvalResponse, error) {
	var (
		response    runtime.EvalResponse
		errResponse map[string]any
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&response).
		SetError(&errResponse).
		Post("/eval")
	if err != nil {
		return runtime.EvalResponse{}, fmt.Errorf("eval request failed: %w", err)
	}

	// 422 carries a well-formed response body describing the failure.
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		var failed runtime.EvalResponse
		if err := json.Unmarshal(resp.Body(), &failed); err == nil {
			return failed, nil
		}
	}
	if resp.IsError() {
		return runtime.EvalResponse{}, fmt.Errorf("eval request rejected: %s: %v", resp.Status(), errResponse)
	}

	return response, nil
}

// Healthy reports whether the service answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Get("/healthz")
	return err == nil && resp.IsSuccess()
}
