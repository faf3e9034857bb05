package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a limit/offset window over a list.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage applies defaults: a non-positive limit becomes def, a limit above
// max is capped (max <= 0 disables the cap), a negative offset becomes 0.
func NewPage(limit, offset, def, max int) Page {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// List is a page of results with the total match count.
type List[T any] struct {
	Data   []T   `json:"data"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewList wraps rows, keeping Data non-nil so it encodes as [].
func NewList[T any](rows []T, total int64, p Page) List[T] {
	if rows == nil {
		rows = []T{}
	}
	return List[T]{Data: rows, Total: total, Limit: p.Limit, Offset: p.Offset}
}
