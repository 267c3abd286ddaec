package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Status      bool    `json:"status"`
	Thumbnail   string  `json:"thumbnail"`
	Code        string  `json:"code"`
	Stock       int     `json:"stock"`
}

// Patch is a partial product keyed by JSON field name.
type Patch map[string]json.RawMessage

var (
	ErrNotFound        = errors.New("product not found")
	ErrValidation      = errors.New("invalid product")
	ErrDuplicateCode   = errors.New("duplicate product code")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotInitialized  = errors.New("catalog store not initialized")
)

type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// id and code identify a product; patches never touch them.
var immutableFields = map[string]bool{
	"id":   true,
	"code": true,
}

// IsValid reports whether every required field is present and non-zero.
func IsValid(p Product) bool {
	return len(missingFields(p)) == 0 && p.Price >= 0 && p.Stock >= 0
}

func validateCandidate(p Product) error {
	if missing := missingFields(p); len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required fields missing"}
	}
	return validateRanges(p)
}

func missingFields(p Product) []string {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}

	check("title", strings.TrimSpace(p.Title) != "")
	check("author", strings.TrimSpace(p.Author) != "")
	check("category", strings.TrimSpace(p.Category) != "")
	check("description", strings.TrimSpace(p.Description) != "")
	check("price", p.Price != 0)
	check("status", p.Status)
	check("thumbnail", strings.TrimSpace(p.Thumbnail) != "")
	check("code", strings.TrimSpace(p.Code) != "")
	check("stock", p.Stock != 0)

	return missing
}

func validateRanges(p Product) error {
	var bad []string
	if p.Price < 0 {
		bad = append(bad, "price")
	}
	if p.Stock < 0 {
		bad = append(bad, "stock")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad, Reason: "must not be negative"}
	}
	return nil
}

// validateStored checks a product after a patch. status may be false here.
func validateStored(p Product) error {
	var empty []string
	for name, v := range map[string]string{
		"title":       p.Title,
		"author":      p.Author,
		"category":    p.Category,
		"description": p.Description,
		"thumbnail":   p.Thumbnail,
	} {
		if strings.TrimSpace(v) == "" {
			empty = append(empty, name)
		}
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return &ValidationError{Fields: empty, Reason: "must not be empty"}
	}
	return validateRanges(p)
}

// applyPatch merges the known, mutable keys of patch into p. Unknown keys
// and identity keys are dropped.
func applyPatch(p Product, patch Patch) (Product, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return Product{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return Product{}, err
	}

	for k, v := range patch {
		if _, known := fields[k]; !known || immutableFields[k] {
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return Product{}, &ValidationError{Reason: "malformed patch value"}
	}

	var out Product
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Product{}, &ValidationError{Fields: []string{typeErr.Field}, Reason: "wrong type"}
		}
		return Product{}, &ValidationError{Reason: "malformed patch value"}
	}

	if err := validateStored(out); err != nil {
		return Product{}, err
	}
	return out, nil
}
