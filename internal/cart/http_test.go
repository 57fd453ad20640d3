package cart_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/cart"
	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
)

func newCartTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &cart.Server{
		Hub: cart.NewHub(cart.NewMemStore(), zap.NewNop()),
		Log: zap.NewNop(),
	}

	h := cart.NewHandler(s, cart.HTTPDeps{
		Log:      zap.NewNop(),
		Service:  "cart",
		Verifier: platform.NewVerifier("test-secret-test-secret-test-sec"),
	})

	return httptest.NewServer(h)
}

func doCart(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-Id", "u1")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func snapshotBody(id string, priceCents int64, stock, qty int) map[string]any {
	return map[string]any{
		"product": map[string]any{
			"id":          id,
			"name":        "ThinkBook " + id,
			"brand":       "Lenovo",
			"price_cents": priceCents,
			"stock":       stock,
		},
		"quantity": qty,
	}
}

type cartViewResp struct {
	Items []struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
		Quantity int `json:"quantity"`
	} `json:"items"`
	TotalCents int64 `json:"total_cents"`
	ItemCount  int   `json:"item_count"`
}

func TestCartHTTP_AddGetUpdateRemove(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	{
		resp, raw := doCart(t, http.MethodPost, ts.URL+"/cart/items", snapshotBody("p1", 1000, 5, 2))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add status = %d, body %s", resp.StatusCode, raw)
		}
	}

	{
		resp, raw := doCart(t, http.MethodGet, ts.URL+"/cart", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status = %d", resp.StatusCode)
		}

		var v cartViewResp
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if v.ItemCount != 2 || v.TotalCents != 2000 {
			t.Fatalf("view = %+v", v)
		}
	}

	{
		resp, _ := doCart(t, http.MethodPatch, ts.URL+"/cart/items/p1", map[string]any{"quantity": 5})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("patch status = %d", resp.StatusCode)
		}
	}

	{
		resp, _ := doCart(t, http.MethodDelete, ts.URL+"/cart/items/p1", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete status = %d", resp.StatusCode)
		}

		_, raw := doCart(t, http.MethodGet, ts.URL+"/cart", nil)
		var v cartViewResp
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if v.ItemCount != 0 {
			t.Fatalf("item_count after remove = %d", v.ItemCount)
		}
	}
}

func TestCartHTTP_StockCeiling409(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	if resp, _ := doCart(t, http.MethodPost, ts.URL+"/cart/items", snapshotBody("p1", 1000, 5, 4)); resp.StatusCode != http.StatusOK {
		t.Fatalf("seed add failed: %d", resp.StatusCode)
	}

	resp, raw := doCart(t, http.MethodPost, ts.URL+"/cart/items", snapshotBody("p1", 1000, 5, 2))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", resp.StatusCode, raw)
	}

	var body struct {
		Error   string `json:"error"`
		Details struct {
			ProductID string `json:"product_id"`
			Max       int    `json:"max"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Details.Max != 5 || body.Details.ProductID != "p1" {
		t.Fatalf("details = %+v", body.Details)
	}
}

func TestCartHTTP_ClearAndBadInput(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	if resp, _ := doCart(t, http.MethodPost, ts.URL+"/cart/items", snapshotBody("p1", 1000, 5, 1)); resp.StatusCode != http.StatusOK {
		t.Fatal("seed add failed")
	}

	if resp, _ := doCart(t, http.MethodDelete, ts.URL+"/cart", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", resp.StatusCode)
	}

	_, raw := doCart(t, http.MethodGet, ts.URL+"/cart", nil)
	var v cartViewResp
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.ItemCount != 0 || v.TotalCents != 0 {
		t.Fatalf("view after clear = %+v", v)
	}

	// Missing product id.
	resp, _ := doCart(t, http.MethodPost, ts.URL+"/cart/items", map[string]any{
		"product": map[string]any{"name": "no id"}, "quantity": 1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// Explicit zero quantity.
	resp, _ = doCart(t, http.MethodPost, ts.URL+"/cart/items", snapshotBody("p2", 1000, 5, 0))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCartHTTP_AcceptsCatalogShapedProduct(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	// A storefront client posts the catalog's product verbatim, which
	// carries fields the snapshot does not track.
	body := map[string]any{
		"product": map[string]any{
			"id":          "lp1",
			"name":        "ThinkPad X1 Carbon",
			"brand":       "Lenovo",
			"price_cents": 189900,
			"stock":       12,
			"description": "14-inch ultrabook",
			"created_at":  "2026-01-02T15:04:05Z",
		},
		"quantity": 2,
	}

	resp, raw := doCart(t, http.MethodPost, ts.URL+"/cart/items", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d, body %s", resp.StatusCode, raw)
	}

	var v cartViewResp
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.ItemCount != 2 || v.TotalCents != 379800 {
		t.Fatalf("view = %+v", v)
	}

	// Unknown fields in the envelope itself are still rejected.
	resp, _ = doCart(t, http.MethodPost, ts.URL+"/cart/items", map[string]any{
		"product": map[string]any{"id": "lp1", "price_cents": 189900, "stock": 12},
		"qty":     1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCartHTTP_RequiresUser(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/cart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCartHTTP_BearerToken(t *testing.T) {
	ts := newCartTS(t)
	t.Cleanup(ts.Close)

	v := platform.NewVerifier("test-secret-test-secret-test-sec")
	tok, err := v.Mint("u9", "u9@example.com", "user", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/cart", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
