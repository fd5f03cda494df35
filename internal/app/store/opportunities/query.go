package opportunitystore

import (
	"context"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/paging"
	"github.com/dalemusser/opportunityhub/internal/app/system/search"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// searchFields are OR-matched by ListQuery.Search.
var searchFields = []string{"title", "description", "category"}

// ListQuery selects a page of opportunities. Nil pointers and empty strings
// mean "no constraint"; start from DefaultListQuery so hiding inactive
// postings is explicit at every call site.
type ListQuery struct {
	IsActive *bool
	Type     string
	Category string
	IsRemote *bool
	Search   string
	Page     int
	PageSize int
}

// DefaultListQuery is {IsActive: true, Page: 1, PageSize: 10}.
func DefaultListQuery() ListQuery {
	active := true
	return ListQuery{
		IsActive: &active,
		Page:     paging.DefaultPage,
		PageSize: paging.DefaultPageSize,
	}
}

// Page is one slice of a List result.
type Page struct {
	Items      []models.OpportunityView
	Total      int64
	Page       int
	TotalPages int
}

// Filter builds the Mongo filter for q. Clauses AND-combine; the search
// terms OR-combine with each other.
func (q ListQuery) Filter() bson.M {
	filter := bson.M{}
	if q.IsActive != nil {
		filter["isActive"] = *q.IsActive
	}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.IsRemote != nil {
		filter["isRemote"] = *q.IsRemote
	}
	if or := search.AnyField(q.Search, searchFields...); or != nil {
		filter["$or"] = or
	}
	return filter
}

// List returns the requested page, newest first, with providers joined.
// Total ignores pagination; a page past the end has no items.
func (s *Store) List(ctx context.Context, q ListQuery) (Page, error) {
	page, size := paging.Normalize(q.Page, q.PageSize)
	filter := q.Filter()

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, apperr.Store("count opportunities", err)
	}

	out := Page{Total: total, Page: page, TotalPages: paging.TotalPages(total, size)}
	if paging.Skip(page, size) >= total {
		out.Items = []models.OpportunityView{}
		return out, nil
	}

	find := options.Find()
	paging.ApplyToFind(find, "createdAt", page, size)
	items, err := s.find(ctx, filter, find)
	if err != nil {
		return Page{}, err
	}
	out.Items = items
	return out, nil
}
