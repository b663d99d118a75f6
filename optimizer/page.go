package optimizer

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is the envelope returned by every list operation.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Total      int        `json:"total"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds the envelope for items fetched at offset with limit.
// Page numbers start at 1.
func NewPage[T any](items []T, total, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	return Page[T]{
		Items: items,
		Total: total,
		Pagination: Pagination{
			Page:       offset/limit + 1,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
}
