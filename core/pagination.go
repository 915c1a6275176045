package core

import "math"

const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 200

	// MaxPage keeps the offset of any page within an int32.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Pagination selects one page of a listing. The zero value selects the first default-sized page.
type Pagination struct {
	Page    int `query:"page"`
	PerPage int `query:"per_page"`
}

// Clean clamps the page and page size into their allowed ranges.
func (p Pagination) Clean() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Pagination) Limit() int  { return p.Clean().PerPage }
func (p Pagination) Offset() int { c := p.Clean(); return (c.Page - 1) * c.PerPage }

type PageMeta struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func NewPageMeta(p Pagination, total int) PageMeta {
	p = p.Clean()
	pages := int(math.Ceil(float64(total) / float64(p.PerPage)))
	return PageMeta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// PageBounds returns the [start, end) slice bounds of page p in a listing of n items.
func PageBounds(p Pagination, n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit()
	if end > n {
		end = n
	}
	return start, end
}
