package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nkiryanov/bankcards/internal/models"
)

var errBadRequest = errors.New("bad request")

// pathID parses uuid path value
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

// pageRequest reads 0-based 'page' and 'size' query params, defaults are applied later
func pageRequest(r *http.Request) (models.PageRequest, error) {
	var page models.PageRequest
	q := r.URL.Query()

	for name, dst := range map[string]*int{"page": &page.Page, "size": &page.Size} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, fmt.Errorf("%w: invalid %s", errBadRequest, name)
		}
		*dst = n
	}

	return page.Normalize(), nil
}

type pageResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func newPageResponse[S any, T any](p models.Page[S], convert func(S) (T, error)) (pageResponse[T], error) {
	items := make([]T, 0, len(p.Items))
	for _, s := range p.Items {
		item, err := convert(s)
		if err != nil {
			return pageResponse[T]{}, err
		}
		items = append(items, item)
	}

	return pageResponse[T]{Items: items, Total: p.Total, Page: p.Page, Size: p.Size}, nil
}
