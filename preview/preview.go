// Package preview builds size-bounded structured previews of oversized
// cached values, using the strategies the reference store and
// cached-callable wrapper fall back to when a value exceeds its
// effective max_size (sample, paginate, truncate).
package preview

import (
	"fmt"
	"reflect"

	"goa.design/refcache/size"
)

// Strategy names a preview generation algorithm.
type Strategy string

const (
	Sample   Strategy = "SAMPLE"
	Paginate Strategy = "PAGINATE"
	Truncate Strategy = "TRUNCATE"
)

// Result is the structured outcome of a preview generation call. Preview
// always carries the actual structured subset, never a stringified blob
// (Truncate is the one exception: its Preview is the cut string itself).
type Result struct {
	Preview      any      `json:"preview"`
	Strategy     Strategy `json:"strategy"`
	TotalItems   int      `json:"total_items"`
	OriginalSize int      `json:"original_size"`
	PreviewSize  int      `json:"preview_size"`
	Page         int      `json:"page,omitempty"`
	TotalPages   int      `json:"total_pages,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Generator produces a Result for value bounded by maxSize, as measured
// by measurer. page, when non-zero, requests a specific 1-indexed page;
// the Sample and Paginate generators then paginate, while the Truncate
// generator ignores page and pageSize. pageSize, when non-zero, fixes the
// number of items Paginate puts on each page, overriding the page size it
// would otherwise derive from maxSize.
type Generator interface {
	Generate(value any, maxSize int, measurer size.Measurer, page, pageSize int) (Result, error)
}

// New returns the Generator for strategy.
func New(strategy Strategy) Generator {
	switch strategy {
	case Paginate:
		return paginateGenerator{}
	case Truncate:
		return truncateGenerator{}
	default:
		return sampleGenerator{}
	}
}

// listOf reflects v into a []any if it is a slice/array, else nil, ok=false.
func listOf(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// mapKeysOf reflects v into a sorted-free slice of (key, value) pairs if
// it is map-like, else nil, ok=false. Order is the reflect.MapKeys order,
// which is randomized per Go's map semantics but stable within one call.
func mapKeysOf(v any) ([]string, map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, nil, false
	}
	keys := make([]string, 0, rv.Len())
	m := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		ks := fmt.Sprintf("%v", k.Interface())
		keys = append(keys, ks)
		m[ks] = rv.MapIndex(k).Interface()
	}
	return keys, m, true
}

func measure(measurer size.Measurer, v any) int {
	n, err := measurer.Measure(v)
	if err != nil {
		return 0
	}
	return n
}

func insufficientSpace(strategy Strategy, originalSize int) Result {
	return Result{
		Preview:      []any{},
		Strategy:     strategy,
		TotalItems:   0,
		OriginalSize: originalSize,
		PreviewSize:  0,
		Message:      "max_size too small to represent any preview content; truncated to empty",
	}
}
