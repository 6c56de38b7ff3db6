package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// DefaultParams returns the first page with the default limit.
func DefaultParams() Params {
	return Params{Page: 1, Limit: DefaultLimit}
}

// New validates page and limit and computes the offset.
func New(page, limit int) (Params, error) {
	if page < 1 {
		return Params{}, apperrors.InvalidInput("page must be greater than or equal to 1")
	}
	if limit < 1 || limit > MaxLimit {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}, nil
}

// FromRequest reads ?page= and ?limit=. Absent values take defaults; present
// but malformed or out of range values are rejected.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, apperrors.InvalidInput("page must be an integer")
		}
		p.Page = v
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, apperrors.InvalidInput("limit must be an integer")
		}
		p.Limit = v
	}

	return New(p.Page, p.Limit)
}

// Result wraps one page of items.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewResult creates a paginated result.
func NewResult[T any](items []T, totalCount int, params Params) Result[T] {
	limit := params.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := totalCount / limit
	if totalCount%limit > 0 {
		totalPages++
	}
	if items == nil {
		items = []T{}
	}

	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       params.Page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}
