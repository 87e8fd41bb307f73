package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a zero based page number and page size
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps negative page to zero and size into [1, MaxPageSize]
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Size  int
}

func NewPage[T any](items []T, total int64, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, Size: req.Size}
}
