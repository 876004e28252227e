package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	defaultTimeout = 90 * time.Second
)

// AnalyzeResult is the answer to an analyze request.
type AnalyzeResult struct {
	Analysis *fridge.Analysis `json:"analysis"`
	Usage    llm.Usage        `json:"usage"`
	Cached   bool             `json:"cached"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Violations []fridge.Violation
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("request failed (status: %d): %s", e.StatusCode, e.Message)
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		msg += " [" + strings.Join(parts, "; ") + "]"
	}
	return msg
}

type errorBody struct {
	Error      string             `json:"error"`
	Violations []fridge.Violation `json:"violations"`
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the kitchen-lens HTTP API.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &c
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&errorBody{})

	if result != nil {
		request.SetResult(result)
	}

	return request
}

// Analyze uploads an image and returns the stored analysis. An empty
// mimeType lets the server pick its default.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (*AnalyzeResult, error) {
	result := &AnalyzeResult{}
	body := map[string]string{"image": base64.StdEncoding.EncodeToString(image)}
	if mimeType != "" {
		body["mimeType"] = mimeType
	}

	if _, err := handleError(c.req(ctx, result).SetBody(body).Post("/api/analyze-fridge")); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAnalysis returns the current analysis, or nil when none is stored.
func (c *Client) GetAnalysis(ctx context.Context) (*fridge.Analysis, error) {
	result := &fridge.Analysis{}
	res, err := c.req(ctx, result).Get("/api/analysis")
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if _, err := handleError(res, err); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateQuantity changes the quantity of one item. It returns nil when no
// analysis is stored.
func (c *Client) UpdateQuantity(ctx context.Context, index int, quantity float64) (*fridge.Analysis, error) {
	result := &fridge.Analysis{}
	res, err := c.req(ctx, result).
		SetPathParam("index", strconv.Itoa(index)).
		SetBody(map[string]float64{"quantity": quantity}).
		Patch("/api/analysis/items/{index}")
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if _, err := handleError(res, err); err != nil {
		return nil, err
	}
	return result, nil
}

// ClearAnalysis removes the current analysis.
func (c *Client) ClearAnalysis(ctx context.Context) error {
	_, err := handleError(c.req(ctx, nil).Delete("/api/analysis"))
	return err
}

// Generate sends a free-form prompt, with an optional image.
func (c *Client) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	body := map[string]string{"prompt": prompt}
	if len(image) > 0 {
		body["image"] = base64.StdEncoding.EncodeToString(image)
		if mimeType != "" {
			body["mimeType"] = mimeType
		}
	}

	if _, err := handleError(c.req(ctx, &result).SetBody(body).Post("/api/gemini")); err != nil {
		return "", err
	}
	return result.Text, nil
}

// handleError turns failing responses (>399 status code) into an *APIError.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		apiErr := &APIError{StatusCode: res.StatusCode(), Message: http.StatusText(res.StatusCode())}
		if body, ok := res.Error().(*errorBody); ok && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Violations = body.Violations
		}
		return res, apiErr
	}

	return res, nil
}
