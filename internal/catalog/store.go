package catalog

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"MiniCart/internal/docstore"
)

// Store owns the product collection. Reads are served from memory; every
// mutation builds the next collection, saves it wholesale, and only then
// swaps it in, all under the write lock.
type Store struct {
	repo docstore.Repository[Product]
	log  *zap.Logger

	mu       sync.RWMutex
	ready    bool
	products []Product
	nextID   int
}

func NewStore(repo docstore.Repository[Product], log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, log: log, nextID: 1}
}

// Init loads the collection. A missing document starts an empty catalog and
// writes it out; a corrupt one or an I/O failure is returned as is.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, found, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if err := checkLoaded(products); err != nil {
		return err
	}

	if !found {
		s.log.Info("products document not found, starting empty catalog")
		if err := s.repo.Save(ctx, products); err != nil {
			return err
		}
	}

	s.products = products
	s.nextID = nextIDAfter(products)
	s.ready = true

	s.log.Info("catalog loaded",
		zap.Int("products", len(products)),
		zap.Int("next_id", s.nextID),
	)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Store) Add(ctx context.Context, candidate Product) (Product, error) {
	if err := validateCandidate(candidate); err != nil {
		return Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Product{}, ErrNotInitialized
	}
	if s.codeTaken(candidate.Code) {
		return Product{}, fmt.Errorf("%w: %s", ErrDuplicateCode, candidate.Code)
	}

	p := candidate
	p.ID = s.nextID
	p.Status = true

	next := append(slices.Clone(s.products), p)
	if err := s.commit(ctx, next); err != nil {
		return Product{}, err
	}
	s.nextID++

	return p, nil
}

func (s *Store) Update(ctx context.Context, id int, patch Patch) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Product{}, ErrNotInitialized
	}

	i := s.indexOf(id)
	if i < 0 {
		return Product{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if len(patch) == 0 {
		return Product{}, &ValidationError{Reason: "no fields to update"}
	}

	updated, err := applyPatch(s.products[i], patch)
	if err != nil {
		return Product{}, err
	}

	next := slices.Clone(s.products)
	next[i] = updated
	if err := s.commit(ctx, next); err != nil {
		return Product{}, err
	}

	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotInitialized
	}

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	next := slices.Delete(slices.Clone(s.products), i, i+1)
	return s.commit(ctx, next)
}

func (s *Store) Get(ctx context.Context, id int) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return Product{}, ErrNotInitialized
	}

	i := s.indexOf(id)
	if i < 0 {
		return Product{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return s.products[i], nil
}

func (s *Store) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.products), nil
}

// ListN returns at most limit products in stored order.
func (s *Store) ListN(ctx context.Context, limit int) ([]Product, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit=%d", ErrInvalidArgument, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.products[:min(limit, len(s.products))]), nil
}

// ParseLimit parses the optional limit query value. set is false when raw
// is empty.
func ParseLimit(raw string) (limit int, set bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: limit must be a non-negative integer, got %q", ErrInvalidArgument, raw)
	}
	return n, true, nil
}

// commit must be called with mu held.
func (s *Store) commit(ctx context.Context, next []Product) error {
	if err := s.repo.Save(ctx, next); err != nil {
		s.log.Error("save products failed", zap.Error(err))
		return err
	}
	s.products = next
	return nil
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
}

func (s *Store) codeTaken(code string) bool {
	return slices.ContainsFunc(s.products, func(p Product) bool { return p.Code == code })
}

func nextIDAfter(products []Product) int {
	maxID := 0
	for _, p := range products {
		maxID = max(maxID, p.ID)
	}
	return maxID + 1
}

func checkLoaded(products []Product) error {
	ids := make(map[int]struct{}, len(products))
	codes := make(map[string]struct{}, len(products))

	for _, p := range products {
		if p.ID <= 0 {
			return fmt.Errorf("%w: product id %d is not positive", docstore.ErrCorrupt, p.ID)
		}
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("%w: duplicate product id %d", docstore.ErrCorrupt, p.ID)
		}
		ids[p.ID] = struct{}{}

		if _, dup := codes[p.Code]; dup {
			return fmt.Errorf("%w: duplicate product code %q", docstore.ErrCorrupt, p.Code)
		}
		codes[p.Code] = struct{}{}
	}
	return nil
}
