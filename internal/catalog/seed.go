package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

//go:embed seed/books.json
var seedBooks []byte

// SeedProducts returns the built-in starter catalog.
func SeedProducts() ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(seedBooks, &products); err != nil {
		return nil, fmt.Errorf("decode seed books: %w", err)
	}
	return products, nil
}

// Seed adds each product through the store. Products whose code is already
// in the catalog are skipped, so seeding on every start is harmless.
func Seed(ctx context.Context, s *Store, products []Product, log *zap.Logger) (added int, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	for _, p := range products {
		created, err := s.Add(ctx, p)
		switch {
		case err == nil:
			added++
			log.Debug("seeded product", zap.Int("id", created.ID), zap.String("code", created.Code))
		case errors.Is(err, ErrDuplicateCode):
			log.Debug("seed product already present", zap.String("code", p.Code))
		default:
			return added, fmt.Errorf("seed product %q: %w", p.Code, err)
		}
	}

	log.Info("catalog seeded", zap.Int("added", added), zap.Int("skipped", len(products)-added))
	return added, nil
}
