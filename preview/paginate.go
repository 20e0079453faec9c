package preview

import "goa.design/refcache/size"

// paginateGenerator splits a list-like value into equal pages and
// returns the requested 1-indexed page (default 1). Used whenever a
// caller passes an explicit page, even when the cache's configured
// default strategy is Sample. The per-page item count is pageSize when
// given; otherwise it is derived from max_size, the largest count whose
// serialized page is at or under max_size.
type paginateGenerator struct{}

func (paginateGenerator) Generate(value any, maxSize int, measurer size.Measurer, page, pageSize int) (Result, error) {
	if page <= 0 {
		page = 1
	}

	if s, ok := value.(string); ok {
		return paginateString(s, maxSize, measurer, page, pageSize)
	}

	list, ok := listOf(value)
	if !ok {
		return truncateGenerator{}.Generate(value, maxSize, measurer, page, pageSize)
	}

	originalSize := measure(measurer, list)
	n := len(list)
	if n == 0 {
		return Result{
			Preview:      []any{},
			Strategy:     Paginate,
			TotalItems:   0,
			OriginalSize: originalSize,
			PreviewSize:  0,
			Page:         1,
			TotalPages:   1,
		}, nil
	}

	perPage := pageSize
	if perPage <= 0 {
		perPage = itemsPerPage(list, maxSize, measurer)
	}
	if perPage == 0 {
		r := insufficientSpace(Paginate, originalSize)
		r.TotalPages = 0
		return r, nil
	}

	totalPages := (n + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > n {
		end = n
	}
	items := list[start:end]

	return Result{
		Preview:      items,
		Strategy:     Paginate,
		TotalItems:   n,
		OriginalSize: originalSize,
		PreviewSize:  measure(measurer, items),
		Page:         page,
		TotalPages:   totalPages,
	}, nil
}

// itemsPerPage binary-searches the largest number of (contiguous, from
// the front) items that measure at or under maxSize, used as the fixed
// page size for every page. Returns 0 when even a single item doesn't
// fit.
func itemsPerPage(list []any, maxSize int, measurer size.Measurer) int {
	n := len(list)
	fits := func(k int) bool {
		if k == 0 {
			return true
		}
		return measure(measurer, list[:k]) <= maxSize
	}
	return largestKThatFits(n, fits)
}

func paginateString(s string, maxSize int, measurer size.Measurer, page, pageSize int) (Result, error) {
	originalSize := measure(measurer, s)
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		return Result{
			Preview:      "",
			Strategy:     Paginate,
			TotalItems:   0,
			OriginalSize: originalSize,
			PreviewSize:  0,
			Page:         1,
			TotalPages:   1,
		}, nil
	}

	perPage := pageSize
	if perPage <= 0 {
		fits := func(k int) bool {
			return measure(measurer, string(runes[:k])) <= maxSize
		}
		perPage = largestKThatFits(n, fits)
	}
	if perPage == 0 {
		r := insufficientSpace(Paginate, originalSize)
		r.TotalPages = 0
		return r, nil
	}

	totalPages := (n + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > n {
		end = n
	}
	chunk := string(runes[start:end])

	return Result{
		Preview:      chunk,
		Strategy:     Paginate,
		TotalItems:   n,
		OriginalSize: originalSize,
		PreviewSize:  measure(measurer, chunk),
		Page:         page,
		TotalPages:   totalPages,
	}, nil
}
