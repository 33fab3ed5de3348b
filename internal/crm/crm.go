// Package crm looks up known customer attributes by phone number. The only
// attribute the conversation flow consumes today is the addressee gender, used
// to pick the right grammatical forms in gendered languages.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bowerhall/mira/internal/logger"
)

type Attributes struct {
	Gender string `json:"gender"`
	Name   string `json:"name,omitempty"`
}

// Lookup resolves caller attributes. Implementations must be safe to call
// concurrently and should fail soft: an error means "unknown", never a dead turn.
type Lookup interface {
	Customer(ctx context.Context, phone string) (*Attributes, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Customer(ctx context.Context, phone string) (*Attributes, error) {
	endpoint := fmt.Sprintf("%s/customers?phone=%s", c.baseURL, url.QueryEscape(phone))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("crm error (status %d): %s", resp.StatusCode, string(body))
	}

	var attrs Attributes
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decode crm response: %w", err)
	}

	logger.Debug("crm lookup", "phone", phone, "gender", attrs.Gender)
	return &attrs, nil
}
