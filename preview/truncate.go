package preview

import (
	"encoding/json"
	"fmt"

	"goa.design/refcache/size"
)

const ellipsisMarker = "... [truncated]"

// truncateGenerator stringifies value, cuts it at max_size, and appends
// an ellipsis marker. It is the escape hatch for types Sample can't
// decompose (scalars, strings).
type truncateGenerator struct{}

func (g truncateGenerator) Generate(value any, maxSize int, measurer size.Measurer, page, pageSize int) (Result, error) {
	s, ok := value.(string)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return Result{}, fmt.Errorf("preview: truncate: stringify value: %w", err)
		}
		s = string(data)
	}
	return g.generateString(s, maxSize, measurer)
}

func (truncateGenerator) generateString(s string, maxSize int, measurer size.Measurer) (Result, error) {
	originalSize := measure(measurer, s)
	if originalSize <= maxSize {
		return Result{
			Preview:      s,
			Strategy:     Truncate,
			TotalItems:   1,
			OriginalSize: originalSize,
			PreviewSize:  originalSize,
		}, nil
	}

	runes := []rune(s)
	lo, hi, best := 0, len(runes), 0
	for lo <= hi {
		mid := (lo + hi) / 2
		candidate := string(runes[:mid]) + ellipsisMarker
		if measure(measurer, candidate) <= maxSize {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if best == 0 {
		return insufficientSpace(Truncate, originalSize), nil
	}

	cut := string(runes[:best]) + ellipsisMarker
	return Result{
		Preview:      cut,
		Strategy:     Truncate,
		TotalItems:   1,
		OriginalSize: originalSize,
		PreviewSize:  measure(measurer, cut),
	}, nil
}
