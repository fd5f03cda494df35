// internal/app/system/search/search.go
package search

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxQueryLen bounds the text a client can feed into a regex match.
const MaxQueryLen = 200

// Clean cuts q to MaxQueryLen runes. Surrounding spaces are part of the
// match, so "Data " finds "Data Analyst" but not "Database".
func Clean(q string) string {
	if r := []rune(q); len(r) > MaxQueryLen {
		q = string(r[:MaxQueryLen])
	}
	return q
}

// Contains returns a case-insensitive match for q as a literal substring.
// Regex metacharacters in q are escaped, so "c++" matches "C++ Developer".
func Contains(q string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
}

// AnyField builds an $or clause matching q in any of fields.
// Returns nil for an empty or all-space query so callers can skip the clause.
func AnyField(q string, fields ...string) bson.A {
	q = Clean(q)
	if strings.TrimSpace(q) == "" || len(fields) == 0 {
		return nil
	}
	re := Contains(q)
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: re})
	}
	return or
}
