package accounts

import (
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PageRequest selects a page of results. Pages start at 1.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest builds a PageRequest from raw query values, falling back to
// defaults on anything unparseable.
func NewPageRequest(page, perPage string) PageRequest {
	p, _ := strconv.Atoi(strings.TrimSpace(page))
	pp, _ := strconv.Atoi(strings.TrimSpace(perPage))
	return PageRequest{Page: p, PerPage: pp}.Normalize()
}

// Normalize clamps the request into the accepted range.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = DefaultPerPage
	}
	if r.PerPage > MaxPerPage {
		r.PerPage = MaxPerPage
	}
	return r
}

// Offset is the number of rows to skip.
func (r PageRequest) Offset() int {
	r = r.Normalize()
	return (r.Page - 1) * r.PerPage
}

func (r PageRequest) apply(q *bun.SelectQuery) *bun.SelectQuery {
	r = r.Normalize()
	return q.Limit(r.PerPage).Offset(r.Offset())
}

// PageMeta describes a page in a paginated response.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// Page is a slice of results plus pagination metadata.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewPage assembles a Page for req out of items and the total row count.
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}

	last := 1
	if total > 0 {
		last = (total + req.PerPage - 1) / req.PerPage
	}

	return Page[T]{
		Data: items,
		Meta: PageMeta{
			CurrentPage: req.Page,
			PerPage:     req.PerPage,
			Total:       total,
			LastPage:    last,
		},
	}
}

// MapPage converts the items of a page keeping its metadata.
func MapPage[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := make([]R, 0, len(p.Data))
	for _, item := range p.Data {
		out = append(out, fn(item))
	}
	return Page[R]{Data: out, Meta: p.Meta}
}

// UserFilter narrows user listings.
type UserFilter struct {
	// Search matches username or realname, case insensitive.
	Search string
	Status UserStatus
	Role   UserRole
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (f UserFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	// email is private and never searchable
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(?TableAlias.username) LIKE ? ESCAPE '!'", like).
				WhereOr("LOWER(?TableAlias.realname) LIKE ? ESCAPE '!'", like)
		})
	}
	if f.Status != "" {
		q = q.Where("?TableAlias.status = ?", f.Status)
	}
	if f.Role != "" {
		q = q.Where("?TableAlias.user_role = ?", f.Role)
	}
	return q
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	Type       string
	UnreadOnly bool
}

func (f NotificationFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Type != "" {
		q = q.Where("?TableAlias.type = ?", f.Type)
	}
	if f.UnreadOnly {
		q = q.Where("?TableAlias.read_at IS NULL")
	}
	return q
}
