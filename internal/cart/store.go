package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"MiniCart/internal/catalog"
	"MiniCart/internal/docstore"
)

type Item struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

type Cart struct {
	ID    int    `json:"id"`
	Items []Item `json:"items"`
}

func (c Cart) clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{ID: c.ID, Items: items}
}

var (
	ErrNotFound        = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNotInitialized  = errors.New("cart store not initialized")
)

// Catalog is the read-only product lookup carts validate against.
type Catalog interface {
	Get(ctx context.Context, id int) (catalog.Product, error)
}

// Store owns the cart collection. It follows the same load, mutate a copy,
// save, swap cycle as the catalog store.
type Store struct {
	repo    docstore.Repository[Cart]
	catalog Catalog
	log     *zap.Logger

	mu     sync.RWMutex
	ready  bool
	carts  []Cart
	nextID int
}

func NewStore(repo docstore.Repository[Cart], products Catalog, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, catalog: products, log: log, nextID: 1}
}

// Init loads the carts. The catalog has to be initialized first: Init
// checks every stored item against it and logs the ones whose product is
// gone.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	carts, found, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if err := checkLoaded(carts); err != nil {
		return err
	}

	if !found {
		s.log.Info("carts document not found, starting with no carts")
		if err := s.repo.Save(ctx, carts); err != nil {
			return err
		}
	}

	dangling, err := s.danglingItems(ctx, carts)
	if err != nil {
		return err
	}
	if dangling > 0 {
		s.log.Warn("carts reference missing products", zap.Int("items", dangling))
	}

	s.carts = carts
	s.nextID = nextIDAfter(carts)
	s.ready = true

	s.log.Info("carts loaded",
		zap.Int("carts", len(carts)),
		zap.Int("next_id", s.nextID),
	)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Store) Create(ctx context.Context) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Cart{}, ErrNotInitialized
	}

	c := Cart{ID: s.nextID, Items: []Item{}}
	next := append(s.cloneAll(), c)
	if err := s.commit(ctx, next); err != nil {
		return Cart{}, err
	}
	s.nextID++

	return c.clone(), nil
}

func (s *Store) Get(ctx context.Context, id int) (Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return Cart{}, ErrNotInitialized
	}

	i := s.indexOf(id)
	if i < 0 {
		return Cart{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return s.carts[i].clone(), nil
}

// AddProduct puts quantity units of a product in a cart, merging with an
// existing line for the same product. A quantity of 0 means one unit.
func (s *Store) AddProduct(ctx context.Context, cartID, productID, quantity int) (Cart, error) {
	if quantity < 0 {
		return Cart{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if quantity == 0 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Cart{}, ErrNotInitialized
	}

	i := s.indexOf(cartID)
	if i < 0 {
		return Cart{}, fmt.Errorf("%w: id=%d", ErrNotFound, cartID)
	}

	if _, err := s.catalog.Get(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Cart{}, fmt.Errorf("%w: id=%d", ErrProductNotFound, productID)
		}
		return Cart{}, err
	}

	next := s.cloneAll()
	c := &next[i]
	if j := slices.IndexFunc(c.Items, func(it Item) bool { return it.ProductID == productID }); j >= 0 {
		if quantity > math.MaxInt-c.Items[j].Quantity {
			return Cart{}, fmt.Errorf("%w: line for product %d would overflow", ErrInvalidQuantity, productID)
		}
		c.Items[j].Quantity += quantity
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	}

	if err := s.commit(ctx, next); err != nil {
		return Cart{}, err
	}
	return next[i].clone(), nil
}

// commit must be called with mu held.
func (s *Store) commit(ctx context.Context, next []Cart) error {
	if err := s.repo.Save(ctx, next); err != nil {
		s.log.Error("save carts failed", zap.Error(err))
		return err
	}
	s.carts = next
	return nil
}

func (s *Store) cloneAll() []Cart {
	out := make([]Cart, len(s.carts))
	for i, c := range s.carts {
		out[i] = c.clone()
	}
	return out
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.carts, func(c Cart) bool { return c.ID == id })
}

func (s *Store) danglingItems(ctx context.Context, carts []Cart) (int, error) {
	known := map[int]bool{}
	dangling := 0

	for _, c := range carts {
		for _, it := range c.Items {
			exists, seen := known[it.ProductID]
			if !seen {
				_, err := s.catalog.Get(ctx, it.ProductID)
				switch {
				case err == nil:
					exists = true
				case errors.Is(err, catalog.ErrNotFound):
				default:
					return 0, fmt.Errorf("check cart %d product %d: %w", c.ID, it.ProductID, err)
				}
				known[it.ProductID] = exists
			}
			if !exists {
				dangling++
			}
		}
	}
	return dangling, nil
}

func nextIDAfter(carts []Cart) int {
	maxID := 0
	for _, c := range carts {
		maxID = max(maxID, c.ID)
	}
	return maxID + 1
}

func checkLoaded(carts []Cart) error {
	ids := make(map[int]struct{}, len(carts))

	for i := range carts {
		c := &carts[i]
		if c.ID <= 0 {
			return fmt.Errorf("%w: cart id %d is not positive", docstore.ErrCorrupt, c.ID)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("%w: duplicate cart id %d", docstore.ErrCorrupt, c.ID)
		}
		ids[c.ID] = struct{}{}

		if c.Items == nil {
			c.Items = []Item{}
		}

		products := make(map[int]struct{}, len(c.Items))
		for _, it := range c.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("%w: cart %d has quantity %d", docstore.ErrCorrupt, c.ID, it.Quantity)
			}
			if _, dup := products[it.ProductID]; dup {
				return fmt.Errorf("%w: cart %d lists product %d twice", docstore.ErrCorrupt, c.ID, it.ProductID)
			}
			products[it.ProductID] = struct{}{}
		}
	}
	return nil
}
