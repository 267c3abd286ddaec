package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func TestProperty_IDsFollowInsertionRank(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		offset := rapid.IntRange(0, 50).Draw(rt, "offset")

		var existing []Product
		if offset > 0 {
			p := book("existing")
			p.ID = offset
			existing = append(existing, p)
		}

		s := NewStore(&memRepo{records: existing, found: offset > 0}, nil)
		if err := s.Init(ctx); err != nil {
			rt.Fatalf("init: %v", err)
		}

		n := rapid.IntRange(1, 30).Draw(rt, "n")
		for i := 0; i < n; i++ {
			p, err := s.Add(ctx, book(fmt.Sprintf("code-%d", i)))
			if err != nil {
				rt.Fatalf("add %d: %v", i, err)
			}
			if want := offset + 1 + i; p.ID != want {
				rt.Fatalf("id=%d want=%d", p.ID, want)
			}
		}
	})
}

func TestProperty_DuplicateCodeNeverMutates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		s, repo := newStoreForProperty(rt)

		codes := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z][0-9]{1,3}`), 1, 10, rapid.ID[string]).Draw(rt, "codes")
		for _, c := range codes {
			if _, err := s.Add(ctx, book(c)); err != nil {
				rt.Fatalf("add %s: %v", c, err)
			}
		}

		before, _ := s.List(ctx)
		saves := repo.saves

		dup := rapid.SampledFrom(codes).Draw(rt, "dup")
		if _, err := s.Add(ctx, book(dup)); !errorIs(err, ErrDuplicateCode) {
			rt.Fatalf("err=%v want duplicate code", err)
		}

		after, _ := s.List(ctx)
		if len(after) != len(before) || repo.saves != saves {
			rt.Fatalf("duplicate add mutated the catalog")
		}
	})
}

func TestProperty_UpdateKeepsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		s, _ := newStoreForProperty(rt)

		p, err := s.Add(ctx, book("A1"))
		if err != nil {
			rt.Fatalf("add: %v", err)
		}

		keys := rapid.SliceOfN(rapid.SampledFrom([]string{
			"id", "code", "title", "stock", "bogus", "another",
		}), 1, 6).Draw(rt, "keys")

		patch := Patch{}
		for _, k := range keys {
			switch k {
			case "id", "stock":
				patch[k] = json.RawMessage(fmt.Sprint(rapid.IntRange(1, 1000).Draw(rt, k)))
			default:
				patch[k] = json.RawMessage(fmt.Sprintf("%q", rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, k)))
			}
		}

		updated, err := s.Update(ctx, p.ID, patch)
		if err != nil {
			rt.Fatalf("update: %v", err)
		}
		if updated.ID != p.ID || updated.Code != p.Code {
			rt.Fatalf("identity changed: %+v", updated)
		}

		raw, _ := json.Marshal(updated)
		var fields map[string]any
		_ = json.Unmarshal(raw, &fields)
		for _, k := range []string{"bogus", "another"} {
			if _, ok := fields[k]; ok {
				rt.Fatalf("unknown key %q was merged", k)
			}
		}
	})
}

func newStoreForProperty(rt *rapid.T) (*Store, *memRepo) {
	repo := &memRepo{}
	s := NewStore(repo, nil)
	if err := s.Init(context.Background()); err != nil {
		rt.Fatalf("init: %v", err)
	}
	return s, repo
}

func errorIs(err, target error) bool {
	return err != nil && errors.Is(err, target)
}
