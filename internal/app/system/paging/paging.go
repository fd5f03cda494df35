// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPage is the 1-based page used when the caller does not ask for one.
const DefaultPage = 1

// DefaultPageSize is the number of rows per page when no limit is given.
const DefaultPageSize = 10

// MaxPageSize caps the limit a client may request.
const MaxPageSize = 100

// ParsePage extracts the 1-based "page" query parameter.
// Returns DefaultPage if not present or invalid.
func ParsePage(r *http.Request) int {
	return parsePositive(query.Get(r, "page"), DefaultPage, 0)
}

// ParseLimit extracts the "limit" query parameter, clamped to MaxPageSize.
// Returns DefaultPageSize if not present or invalid.
func ParseLimit(r *http.Request) int {
	return parsePositive(query.Get(r, "limit"), DefaultPageSize, MaxPageSize)
}

func parsePositive(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Normalize replaces non-positive page or size values with the defaults.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return page, size
}

// Skip is the number of rows before page: (page-1) * size.
func Skip(page, size int) int64 {
	page, size = Normalize(page, size)
	return int64(page-1) * int64(size)
}

// TotalPages is ceil(total / size); zero when there are no rows.
func TotalPages(total int64, size int) int {
	if total <= 0 {
		return 0
	}
	_, size = Normalize(1, size)
	return int((total + int64(size) - 1) / int64(size))
}

// ApplyToFind configures FindOptions for offset pagination sorted newest first.
// _id breaks ties so rows created in the same millisecond keep a stable order
// across pages.
func ApplyToFind(find *options.FindOptions, sortField string, page, size int) {
	page, size = Normalize(page, size)
	find.SetSort(bson.D{
		{Key: sortField, Value: -1},
		{Key: "_id", Value: -1},
	}).SetSkip(Skip(page, size)).SetLimit(int64(size))
}
