package names

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type nameItem struct {
	Name string `json:"name"`
}

type validateRequest struct {
	Names []nameItem `json:"names"`
}

type validateResponse struct {
	Results []Result `json:"results"`
}

// Client calls the hosted validation prompt over HTTP.
type Client struct {
	rc  *resty.Client
	url string
}

func NewClient(url, apiKey string) *Client {
	rc := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(0)
	if apiKey != "" {
		rc.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{rc: rc, url: url}
}

func (c *Client) ValidateNames(ctx context.Context, names []string) ([]Result, error) {
	req := validateRequest{Names: make([]nameItem, 0, len(names))}
	for _, n := range names {
		req.Names = append(req.Names, nameItem{Name: n})
	}

	// some upstreams label JSON responses text/plain; parse by contract,
	// not by Content-Type
	var out validateResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("name validation request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("name validation request: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Results) != len(names) {
		return nil, fmt.Errorf("name validation request: got %d results for %d names", len(out.Results), len(names))
	}
	return out.Results, nil
}
