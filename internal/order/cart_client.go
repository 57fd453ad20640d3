package order

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CartClient clears a user's server-side cart snapshot after a
// successful checkout. Best effort: the storefront clears its own copy
// anyway, so a failure here is logged by the caller and ignored.
type CartClient struct {
	BaseURL string
	Client  *http.Client
}

func NewCartClient(baseURL string) *CartClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &CartClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *CartClient) Clear(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/cart", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-Id", userID)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart clear: status=%d", resp.StatusCode)
	}
	return nil
}
