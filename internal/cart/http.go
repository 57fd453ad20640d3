package cart

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Hub *Hub
	Log *zap.Logger
}

type cartView struct {
	Items      []Entry `json:"items"`
	TotalCents int64   `json:"total_cents"`
	ItemCount  int     `json:"item_count"`
}

func (s *Server) view(c *Cart) cartView {
	items := c.Items()
	if items == nil {
		items = []Entry{}
	}
	return cartView{
		Items:      items,
		TotalCents: c.TotalCents(),
		ItemCount:  c.ItemCount(),
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	c := s.Hub.Get(r.Context(), u.ID)
	kit.WriteJSON(w, http.StatusOK, s.view(c))
}

// addItemReq keeps the product as raw JSON: callers forward whatever the
// catalog served, so the snapshot decode must tolerate fields the cart
// does not track (created_at, description). The envelope itself stays
// strict.
type addItemReq struct {
	Product  json.RawMessage `json:"product"`
	Quantity *int            `json:"quantity"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	var req addItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	var p ProductSnapshot
	if len(req.Product) > 0 {
		if err := json.Unmarshal(req.Product, &p); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad product snapshot", nil)
			return
		}
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	switch {
	case p.ID == "":
		kit.WriteError(w, r, http.StatusBadRequest, "product id required", nil)
		return
	case p.PriceCents < 0 || p.Stock < 0:
		kit.WriteError(w, r, http.StatusBadRequest, "bad product snapshot", nil)
		return
	case qty < 1:
		kit.WriteError(w, r, http.StatusBadRequest, "quantity must be at least 1", nil)
		return
	}

	c := s.Hub.Get(r.Context(), u.ID)
	if err := c.AddItem(r.Context(), p, qty); err != nil {
		s.writeMutationError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, s.view(c))
}

type updateQtyReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) updateQuantity(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	var req updateQtyReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	id := chi.URLParam(r, "productID")
	c := s.Hub.Get(r.Context(), u.ID)

	if err := c.UpdateQuantity(r.Context(), id, req.Quantity); err != nil {
		s.writeMutationError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	c := s.Hub.Get(r.Context(), u.ID)
	c.RemoveItem(r.Context(), chi.URLParam(r, "productID"))

	kit.WriteJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	s.Hub.Get(r.Context(), u.ID).Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *StockExceededError
	if errors.As(err, &stockErr) {
		kit.WriteError(w, r, http.StatusConflict, "stock exceeded", map[string]any{
			"product_id": stockErr.ProductID,
			"max":        stockErr.Ceiling,
		})
		return
	}
	if errors.Is(err, errBadQuantity) {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after json object")
	}
	return nil
}
