package pagination

import (
	"fmt"
	"strconv"
)

// Params represents history paging query parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Page is a window of history records
type Page struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
	Data    any  `json:"data"`
}

// Constants
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Parse parses page and limit from the query string, clamping limit
func Parse(pageStr, limitStr string) (*Params, error) {
	page := DefaultPage
	limit := DefaultLimit

	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, fmt.Errorf("invalid page parameter: %w", err)
		}
		if p > 1 {
			page = p
		}
	}

	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: %w", err)
		}
		switch {
		case l < MinLimit:
			limit = MinLimit
		case l > MaxLimit:
			limit = MaxLimit
		default:
			limit = l
		}
	}

	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, nil
}

// Probe is the row count to fetch so that HasMore can be decided
func (p *Params) Probe() int {
	return p.Limit + 1
}

// Build trims a probed result set to the page size
func Build[T any](p *Params, rows []T) *Page {
	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return &Page{
		Page:    p.Page,
		Limit:   p.Limit,
		HasMore: hasMore,
		Data:    rows,
	}
}
