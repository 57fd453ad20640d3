package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store    Store
	Log      *zap.Logger
	Verifier *platform.Verifier
}

type listResp struct {
	Products []Laptop `json:"products"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PerPage  int      `json:"per_page"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	products, total, err := s.Store.List(r.Context(), f)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("list products failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	f = f.normalized()
	kit.WriteJSON(w, http.StatusOK, listResp{
		Products: products,
		Total:    total,
		Page:     f.Page,
		PerPage:  f.PerPage,
	})
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	f := ListFilter{
		Brand: strings.TrimSpace(q.Get("brand")),
		Query: strings.TrimSpace(q.Get("q")),
	}

	for _, p := range []struct {
		name string
		dst  *int64
	}{
		{"min_price", &f.MinPriceCents},
		{"max_price", &f.MaxPriceCents},
	} {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				return ListFilter{}, errors.New("bad " + p.name)
			}
			*p.dst = v
		}
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"per_page", &f.PerPage},
	} {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				return ListFilter{}, errors.New("bad " + p.name)
			}
			*p.dst = v
		}
	}

	return f, nil
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, ok, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("get product failed", zap.Error(err), zap.String("id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, l)
}

type reserveReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reserveReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Quantity < 1 {
		kit.WriteError(w, r, http.StatusBadRequest, "quantity must be at least 1", nil)
		return
	}

	l, err := s.Store.Reserve(r.Context(), id, req.Quantity)
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	case errors.Is(err, ErrInsufficientStock):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{"id": id})
		return
	case err != nil:
		if s.Log != nil {
			s.Log.Error("reserve failed", zap.Error(err), zap.String("id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, l)
}

type createProductReq struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	PriceCents  int64    `json:"price_cents"`
	Stock       int      `json:"stock"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" {
		req.ID = "lp_" + uuid.NewString()
	}
	if req.Name == "" || req.PriceCents < 0 || req.Stock < 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "name required, price and stock must be non-negative", nil)
		return
	}

	l := Laptop{
		ID:          req.ID,
		Name:        req.Name,
		Brand:       req.Brand,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Description: req.Description,
		Images:      req.Images,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Store.Create(r.Context(), l); err != nil {
		if errors.Is(err, ErrExists) {
			kit.WriteError(w, r, http.StatusConflict, "product already exists", map[string]any{"id": l.ID})
			return
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, l)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := s.Store.Delete(r.Context(), id)
	if err != nil {
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !deleted {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	revs, err := s.Store.ListReviews(r.Context(), id)
	if err != nil {
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, revs)
}

type postReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) postReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(r)
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req postReviewReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		kit.WriteError(w, r, http.StatusBadRequest, "rating must be between 1 and 5", nil)
		return
	}

	rev := Review{
		ID:        "rev_" + uuid.NewString(),
		ProductID: chi.URLParam(r, "id"),
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Store.UpsertReview(r.Context(), rev); err != nil {
		if errors.Is(err, ErrNotFound) {
			kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": rev.ProductID})
			return
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, rev)
}

// userID resolves the caller the same way the cart service does: trust
// the gateway-injected header first, fall back to the bearer token.
func (s *Server) userID(r *http.Request) (string, bool) {
	if uid := r.Header.Get("X-User-Id"); uid != "" {
		return uid, true
	}

	authz := r.Header.Get("Authorization")
	if s.Verifier == nil || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}

	claims, err := s.Verifier.Parse(strings.TrimPrefix(authz, "Bearer "))
	if err != nil || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
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
