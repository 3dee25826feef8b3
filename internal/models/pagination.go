package models

// Pagination describes one page of an offset-paginated listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes the page count as ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Page is the listing envelope returned by paginated endpoints.
type Page[T any] struct {
	Query      string     `json:"query,omitempty"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
