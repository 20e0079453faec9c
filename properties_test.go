package refcache_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"goa.design/refcache"
	"goa.design/refcache/actor"
	"goa.design/refcache/preview"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/resolver"
	"goa.design/refcache/size"
)

// anyType is used as a gopter SliceOf type override so generated slices
// come back as []any: mapping a Gen to "any" directly confuses gopter's
// reflection-based output-type detection in Gen.Map, since *GenResult is
// itself assignable to the empty interface.
var anyType = reflect.TypeOf((*any)(nil)).Elem()

// TestPropertySetIsIdempotent checks that for any (namespace,
// canonical(key)) pair, repeated set operations produce the identical
// ref_id, and a later write under the same key replaces the entry in
// place rather than minting a second one.
func TestPropertySetIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated Set with equal key yields the same ref_id", prop.ForAll(
		func(ns string, key string, v1, v2 string) bool {
			ctx := context.Background()
			store := refcache.New("prop")
			defer store.Close(ctx)

			opts := refcache.SetOptions{Namespace: ns, Actor: actor.NewUser()}
			ref1, err := store.Set(ctx, key, v1, opts)
			if err != nil {
				return false
			}
			ref2, err := store.Set(ctx, key, v2, opts)
			if err != nil {
				return false
			}
			return ref1 == ref2
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestPropertyPreviewSizeBound checks that for any preview emitted
// with size s and max_size M, s <= M (modulo the zero-budget edge
// case, which yields an explicit empty preview rather than violating
// the bound).
func TestPropertyPreviewSizeBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	measurer := size.NewByteMeasurer()

	properties.Property("sample preview never exceeds max_size", prop.ForAll(
		func(items []any, maxSize int) bool {
			generator := preview.New(preview.Sample)
			result, err := generator.Generate(items, maxSize, measurer, 0, 0)
			if err != nil {
				return false
			}
			return result.PreviewSize <= maxSize
		},
		gen.SliceOf(gen.AlphaString(), anyType),
		gen.IntRange(1, 4096),
	))

	properties.TestingRun(t)
}

// TestPropertyPaginationCoversWholeList checks that for any page p of
// a paginated preview with total_pages N, 1 <= p <= N, and the union
// of all pages' items equals the underlying list in order.
func TestPropertyPaginationCoversWholeList(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	measurer := size.NewByteMeasurer()

	properties.Property("pages union to the original list in order", prop.ForAll(
		func(items []any) bool {
			if len(items) == 0 {
				return true
			}
			generator := preview.New(preview.Paginate)
			first, err := generator.Generate(items, 64, measurer, 1, 0)
			if err != nil {
				return false
			}
			if first.TotalPages < 1 {
				return true // max_size too small to represent even one item
			}

			var collected []any
			for p := 1; p <= first.TotalPages; p++ {
				result, err := generator.Generate(items, 64, measurer, p, 0)
				if err != nil {
					return false
				}
				if result.Page < 1 || result.Page > first.TotalPages {
					return false
				}
				page, ok := result.Preview.([]any)
				if !ok {
					return false
				}
				collected = append(collected, page...)
			}

			if len(collected) != len(items) {
				return false
			}
			for i := range items {
				if collected[i] != items[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString(), anyType),
	))

	properties.TestingRun(t)
}

// TestPropertyResolverNeverLoopsOnCycle checks that for every cycle in
// the reference graph, resolution fails with CircularReferenceError
// and returns rather than looping forever.
func TestPropertyResolverNeverLoopsOnCycle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("a self-referential chain of any length fails with CircularReferenceError", prop.ForAll(
		func(chainLen int) bool {
			ctx := context.Background()
			store := refcache.New("cyc")
			defer store.Close(ctx)
			res := resolver.New(store)
			a := actor.NewUser()

			// Build a chain ref_0 -> ref_1 -> ... -> ref_(n-1) -> ref_0.
			refs := make([]string, chainLen)
			for i := range refs {
				id, err := store.Set(ctx, i, nil, refcache.SetOptions{Namespace: "cyc", Actor: a})
				if err != nil {
					return false
				}
				refs[i] = id
			}
			for i := range refs {
				next := refs[(i+1)%len(refs)]
				if _, err := store.Set(ctx, i, next, refcache.SetOptions{Namespace: "cyc", Actor: a}); err != nil {
					return false
				}
			}

			done := make(chan error, 1)
			go func() {
				_, err := res.Resolve(ctx, refs[0], a)
				done <- err
			}()
			err := <-done
			var circ *rcerr.CircularReferenceError
			return err != nil && errors.As(err, &circ)
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
