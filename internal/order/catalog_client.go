package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type CatalogProduct struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

var (
	ErrCatalogNotFound    = errors.New("catalog product not found")
	ErrCatalogOutOfStock  = errors.New("catalog out of stock")
	ErrCatalogBadStatus   = errors.New("catalog bad status")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// CatalogClient talks to the catalog service for checkout-time
// validation: live prices and atomic stock reservation. Cart snapshots
// are never trusted for money or stock at this point.
type CatalogClient struct {
	BaseURL string
	Client  *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &CatalogClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string) (CatalogProduct, error) {
	return c.product(ctx, http.MethodGet, fmt.Sprintf("%s/products/%s", c.BaseURL, id), nil)
}

// Reserve decrements live stock for one checkout line and returns the
// product as of the decrement.
func (c *CatalogClient) Reserve(ctx context.Context, id string, qty int) (CatalogProduct, error) {
	body, err := json.Marshal(map[string]int{"quantity": qty})
	if err != nil {
		return CatalogProduct{}, err
	}
	return c.product(ctx, http.MethodPost,
		fmt.Sprintf("%s/products/%s/reserve", c.BaseURL, id), body)
}

func (c *CatalogClient) product(ctx context.Context, method, url string, body []byte) (CatalogProduct, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return CatalogProduct{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return CatalogProduct{}, ErrCatalogUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return CatalogProduct{}, ErrCatalogNotFound
	case http.StatusConflict:
		return CatalogProduct{}, ErrCatalogOutOfStock
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return CatalogProduct{}, fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode)
	}

	var p CatalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return CatalogProduct{}, err
	}
	return p, nil
}
