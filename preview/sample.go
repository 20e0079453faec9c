package preview

import "goa.design/refcache/size"

// sampleGenerator picks an evenly-spaced subsample of a list-like or
// map-like value sized to fit under max_size, binary-searching for the
// largest subsample that fits. Strings fall back to Truncate, since
// there is no meaningful subsample of a scalar string.
type sampleGenerator struct{}

func (sampleGenerator) Generate(value any, maxSize int, measurer size.Measurer, page, pageSize int) (Result, error) {
	if page > 0 {
		return paginateGenerator{}.Generate(value, maxSize, measurer, page, pageSize)
	}

	if s, ok := value.(string); ok {
		return truncateGenerator{}.generateString(s, maxSize, measurer)
	}

	originalSize := measure(measurer, value)

	if list, ok := listOf(value); ok {
		return sampleList(list, maxSize, measurer, originalSize)
	}

	if keys, m, ok := mapKeysOf(value); ok {
		return sampleMap(keys, m, maxSize, measurer, originalSize)
	}

	return truncateGenerator{}.Generate(value, maxSize, measurer, page, pageSize)
}

func sampleList(list []any, maxSize int, measurer size.Measurer, originalSize int) (Result, error) {
	n := len(list)
	fits := func(k int) bool {
		return measure(measurer, evenSubsample(list, k)) <= maxSize
	}

	k := largestKThatFits(n, fits)
	if k == 0 {
		return insufficientSpace(Sample, originalSize), nil
	}

	sub := evenSubsample(list, k)
	return Result{
		Preview:      sub,
		Strategy:     Sample,
		TotalItems:   n,
		OriginalSize: originalSize,
		PreviewSize:  measure(measurer, sub),
	}, nil
}

func sampleMap(keys []string, m map[string]any, maxSize int, measurer size.Measurer, originalSize int) (Result, error) {
	n := len(keys)
	buildSubset := func(k int) map[string]any {
		subKeys := evenSubsampleStrings(keys, k)
		sub := make(map[string]any, len(subKeys))
		for _, key := range subKeys {
			sub[key] = m[key]
		}
		return sub
	}
	fits := func(k int) bool {
		return measure(measurer, buildSubset(k)) <= maxSize
	}

	k := largestKThatFits(n, fits)
	if k == 0 {
		return insufficientSpace(Sample, originalSize), nil
	}

	sub := buildSubset(k)
	return Result{
		Preview:      sub,
		Strategy:     Sample,
		TotalItems:   n,
		OriginalSize: originalSize,
		PreviewSize:  measure(measurer, sub),
	}, nil
}

// largestKThatFits binary-searches [0, n] for the largest k for which
// fits(k) holds, assuming fits is monotonically non-increasing in k
// (more items never make the serialized size smaller).
func largestKThatFits(n int, fits func(int) bool) int {
	lo, hi := 0, n
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if fits(mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// evenSubsample returns k evenly-spaced elements of list, in original
// order, including the first and last element when k >= 2.
func evenSubsample(list []any, k int) []any {
	n := len(list)
	if k <= 0 {
		return []any{}
	}
	if k >= n {
		out := make([]any, n)
		copy(out, list)
		return out
	}
	out := make([]any, 0, k)
	if k == 1 {
		return []any{list[0]}
	}
	step := float64(n-1) / float64(k-1)
	for i := 0; i < k; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= n {
			idx = n - 1
		}
		out = append(out, list[idx])
	}
	return out
}

func evenSubsampleStrings(keys []string, k int) []string {
	n := len(keys)
	if k <= 0 {
		return []string{}
	}
	if k >= n {
		out := make([]string, n)
		copy(out, keys)
		return out
	}
	out := make([]string, 0, k)
	if k == 1 {
		return []string{keys[0]}
	}
	step := float64(n-1) / float64(k-1)
	for i := 0; i < k; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= n {
			idx = n - 1
		}
		out = append(out, keys[idx])
	}
	return out
}
