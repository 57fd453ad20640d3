package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

const maxCreateBody = 1 << 20

type Server struct {
	Store   Store
	Catalog *CatalogClient
	Cart    *CartClient
	Log     *zap.Logger
}

type createItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type createReq struct {
	Items   []createItem `json:"items"`
	Address Address      `json:"address"`
}

var (
	errBadItem         = errors.New("bad item")
	errDuplicateItem   = errors.New("duplicate product_id")
	errInvalidProduct  = errors.New("invalid product_id")
	errOutOfStock      = errors.New("out of stock")
	errCatalogDown     = errors.New("catalog unavailable")
	errCatalogUpstream = errors.New("catalog error")
	errTotalOverflow   = errors.New("total overflow")
)

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	req, err := decodeCreateRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if len(req.Items) == 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "items required", nil)
		return
	}
	if msg := validateAddress(req.Address); msg != "" {
		kit.WriteError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	items, err := s.priceItems(r.Context(), req.Items)
	if err != nil {
		s.writeCreateError(w, r, err)
		return
	}

	// Reserve live stock line by line. A failure mid-way leaves earlier
	// reservations in place; acceptable for the COD simulation, the
	// storefront retries or abandons.
	for _, it := range items {
		if _, err := s.Catalog.Reserve(r.Context(), it.ProductID, it.Qty); err != nil {
			s.writeCreateError(w, r, mapCatalogErr(err))
			return
		}
	}

	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitCents * int64(it.Qty)
	}
	t := computeTotals(subtotal)

	o := Order{
		ID:            "o_" + uuid.NewString(),
		UserID:        u.ID,
		Items:         items,
		SubtotalCents: t.SubtotalCents,
		TaxCents:      t.TaxCents,
		ShippingCents: t.ShippingCents,
		TotalCents:    t.TotalCents,
		PaymentMethod: PaymentCOD,
		Status:        StatusNew,
		Address:       req.Address,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.Store.Create(r.Context(), o); err != nil {
		if isTimeoutErr(err) {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	// Checkout succeeded: drop the server-side cart snapshot. The
	// storefront clears its own copy regardless.
	if s.Cart != nil {
		if err := s.Cart.Clear(r.Context(), u.ID); err != nil && s.Log != nil {
			s.Log.Warn("cart clear after checkout failed",
				zap.Error(err), zap.String("user_id", u.ID))
		}
	}

	kit.WriteJSON(w, http.StatusCreated, o)
}

// priceItems validates the requested lines against the live catalog and
// prices them from it. The client's numbers are never trusted.
func (s *Server) priceItems(ctx context.Context, reqItems []createItem) ([]Item, error) {
	seen := make(map[string]struct{}, len(reqItems))
	items := make([]Item, 0, len(reqItems))
	var total int64

	for _, it := range reqItems {
		pid := strings.TrimSpace(it.ProductID)
		if it.Qty <= 0 || pid == "" {
			return nil, errBadItem
		}
		if _, dup := seen[pid]; dup {
			return nil, errDuplicateItem
		}
		seen[pid] = struct{}{}

		p, err := s.Catalog.GetProduct(ctx, pid)
		if err != nil {
			if s.Log != nil {
				s.Log.Warn("catalog lookup failed", zap.Error(err), zap.String("product_id", pid))
			}
			return nil, mapCatalogErr(err)
		}
		if p.Stock < it.Qty {
			return nil, errOutOfStock
		}

		line := p.PriceCents * int64(it.Qty)
		if line < 0 || total > math.MaxInt64-line {
			return nil, errTotalOverflow
		}
		total += line

		items = append(items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       it.Qty,
			UnitCents: p.PriceCents,
		})
	}

	return items, nil
}

func mapCatalogErr(err error) error {
	switch {
	case errors.Is(err, ErrCatalogNotFound):
		return errInvalidProduct
	case errors.Is(err, ErrCatalogOutOfStock):
		return errOutOfStock
	case errors.Is(err, ErrCatalogUnavailable):
		return errCatalogDown
	default:
		return errCatalogUpstream
	}
}

func validateAddress(a Address) string {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return "address line1 required"
	case strings.TrimSpace(a.City) == "":
		return "address city required"
	case strings.TrimSpace(a.PostalCode) == "":
		return "address postal_code required"
	case strings.TrimSpace(a.Phone) == "":
		return "address phone required"
	}
	return ""
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	orders, err := s.Store.ListByUser(r.Context(), u.ID)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("list orders failed", zap.Error(err), zap.String("user_id", u.ID))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	id := chi.URLParam(r, "id")
	o, found, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.UserID != u.ID && u.Role != RoleAdmin {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

type statusReq struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}
	if u.Role != RoleAdmin {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	var req statusReq
	if err := decodeStrict(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	id := chi.URLParam(r, "id")
	current, found, err := s.Store.Get(r.Context(), id)
	if err != nil {
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}

	if !transitionAllowed(current.Status, req.Status) {
		kit.WriteError(w, r, http.StatusConflict, "invalid status transition", map[string]any{
			"from": current.Status,
			"to":   req.Status,
		})
		return
	}

	o, _, err := s.Store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (createReq, error) {
	var req createReq
	if err := decodeStrict(w, r, &req); err != nil {
		return createReq{}, err
	}
	return req, nil
}

func decodeStrict(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
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

func (s *Server) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case errBadItem:
		kit.WriteError(w, r, http.StatusBadRequest, "bad item", nil)
	case errDuplicateItem:
		kit.WriteError(w, r, http.StatusBadRequest, "duplicate product_id", nil)
	case errInvalidProduct:
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product_id", nil)
	case errOutOfStock:
		kit.WriteError(w, r, http.StatusConflict, "out of stock", nil)
	case errCatalogDown:
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errCatalogUpstream:
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	case errTotalOverflow:
		kit.WriteError(w, r, http.StatusBadRequest, "total overflow", nil)
	default:
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
