package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniCart/internal/auth"
	"MiniCart/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store *Store
	Log   *zap.Logger

	// RequireAdmin guards catalog writes. Nil leaves them open.
	RequireAdmin func(http.Handler) http.Handler
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register adds the product routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)

	r.Group(func(wr chi.Router) {
		if s.RequireAdmin != nil {
			wr.Use(s.RequireAdmin)
		}
		wr.Post("/products", s.create)
		wr.Put("/products/{id}", s.update)
		wr.Delete("/products/{id}", s.delete)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	limit, set, err := ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var products []Product
	if set {
		products, err = s.Store.ListN(r.Context(), limit)
	} else {
		products, err = s.Store.List(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var candidate Product
	if err := decodeBody(w, r, &candidate, true); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Store.Add(r.Context(), candidate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product created", p.ID)
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var patch Patch
	if err := decodeBody(w, r, &patch, false); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Store.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product updated", id)
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// audit logs a committed write with the token subject, when a guard put one
// on the request.
func (s *Server) audit(r *http.Request, msg string, id int) {
	if s.Log == nil {
		return
	}
	fields := []zap.Field{zap.Int("id", id)}
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		fields = append(fields, zap.String("subject", c.Subject), zap.String("role", c.Role))
	}
	s.Log.Info(msg, fields...)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError

	switch {
	case errors.As(err, &verr):
		kit.WriteError(w, r, http.StatusBadRequest, verr.Reason, map[string]any{"fields": verr.Fields})
	case errors.Is(err, ErrInvalidArgument):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		kit.WriteError(w, r, http.StatusConflict, "duplicate code", nil)
	case errors.Is(err, ErrNotInitialized):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
	default:
		if s.Log != nil {
			s.Log.Error("catalog request failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, strict bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after json object")
	}
	return nil
}
