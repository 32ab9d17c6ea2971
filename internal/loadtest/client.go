package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/usercf/internal/domain/types"
)

// outcome of a single rating submission.
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeBackpressure
	outcomeFailed
)

// client wraps http.Client with the service's JSON routes.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *client) health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *client) submit(ctx context.Context, r Rating) outcome {
	body, err := json.Marshal(r)
	if err != nil {
		return outcomeFailed
	}
	resp, err := c.do(ctx, http.MethodPost, "/ratings", bytes.NewReader(body))
	if err != nil {
		return outcomeFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusTooManyRequests:
		return outcomeBackpressure
	default:
		return outcomeFailed
	}
}

func (c *client) stats(ctx context.Context) (types.Stats, error) {
	var s types.Stats
	_, err := c.getJSON(ctx, "/stats", &s)
	return s, err
}

func (c *client) recommendations(ctx context.Context, user, kernel string) (int, types.RecommendationsResponse, error) {
	var r types.RecommendationsResponse
	status, err := c.getJSON(ctx, userPath(user, "recommendations", kernel, 0), &r)
	return status, r, err
}

func (c *client) similar(ctx context.Context, user, kernel string, k int) (int, types.SimilarUsersResponse, error) {
	var r types.SimilarUsersResponse
	status, err := c.getJSON(ctx, userPath(user, "similar", kernel, k), &r)
	return status, r, err
}

func userPath(user, resource, kernel string, k int) string {
	q := url.Values{}
	if kernel != "" {
		q.Set("kernel", kernel)
	}
	if k > 0 {
		q.Set("k", fmt.Sprint(k))
	}
	p := "/users/" + url.PathEscape(user) + "/" + resource
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

// getJSON decodes 2xx bodies into v and returns the status code either way.
func (c *client) getJSON(ctx context.Context, path string, v any) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
