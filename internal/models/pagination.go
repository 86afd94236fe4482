package models

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalisePage clamps a requested page and page size. Pages start at 1;
// sizes outside 1..100 fall back to 20.
func NormalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// NewPagination builds list metadata from the requested window and total rows.
func NewPagination(page, size, total int) *Pagination {
	page, size = NormalisePage(page, size)
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
