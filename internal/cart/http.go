package cart

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniCart/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store *Store
	Log   *zap.Logger

	// CreateLimit throttles cart creation. Nil disables it.
	CreateLimit func(http.Handler) http.Handler
}

type addProductReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register adds the cart routes to r.
func (s *Server) Register(r chi.Router) {
	if s.CreateLimit != nil {
		r.With(s.CreateLimit).Post("/carts", s.create)
	} else {
		r.Post("/carts", s.create)
	}
	r.Get("/carts/{cid}", s.get)
	r.Post("/carts/{cid}/product/{pid}", s.addProduct)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, c)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cid")
	if !ok {
		return
	}

	c, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "pid")
	if !ok {
		return
	}

	req, err := decodeAddProductRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	c, err := s.Store.AddProduct(r.Context(), cartID, productID, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

// decodeAddProductRequest accepts an empty body as "one unit".
func decodeAddProductRequest(w http.ResponseWriter, r *http.Request) (addProductReq, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req addProductReq
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return addProductReq{}, nil
		}
		return addProductReq{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return addProductReq{}, errors.New("extra data after json object")
	}

	return req, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "cart not found", nil)
	case errors.Is(err, ErrProductNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "product not found", nil)
	case errors.Is(err, ErrInvalidQuantity):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid quantity", map[string]any{"cause": err.Error()})
	case errors.Is(err, ErrNotInitialized):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
	default:
		if s.Log != nil {
			s.Log.Error("cart request failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad "+param, map[string]any{param: raw})
		return 0, false
	}
	return id, true
}
