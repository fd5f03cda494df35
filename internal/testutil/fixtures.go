package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user row the way the account service would.
func (f *Fixtures) CreateUser(ctx context.Context, first, last, role string) models.User {
	f.t.Helper()

	u := models.User{
		ID:        primitive.NewObjectID(),
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(first+"."+last) + "@test.com",
		Role:      role,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateOpportunity inserts an active job opportunity owned by provider,
// bypassing store validation. Options adjust the document before insert.
func (f *Fixtures) CreateOpportunity(ctx context.Context, provider models.User, title string, opts ...func(*models.Opportunity)) models.Opportunity {
	f.t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	o := models.Opportunity{
		ID:                  primitive.NewObjectID(),
		Title:               title,
		Description:         "Description of " + title,
		Type:                models.TypeJob,
		Category:            "Engineering",
		Provider:            provider.ID,
		ProviderName:        provider.DisplayName(),
		Location:            "Nairobi",
		Salary:              models.Salary{Currency: models.DefaultCurrency},
		Requirements:        models.Requirements{Skills: []string{}, Languages: []string{}},
		Benefits:            []string{},
		ApplicationDeadline: now.Add(30 * 24 * time.Hour),
		IsActive:            true,
		Tags:                []string{},
		Attachments:         []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := f.db.Collection("opportunities").InsertOne(ctx, o); err != nil {
		f.t.Fatalf("failed to create test opportunity: %v", err)
	}
	return o
}

// Inactive marks a fixture opportunity inactive.
func Inactive(o *models.Opportunity) { o.IsActive = false }

// CreatedAt sets a fixture opportunity's creation time.
func CreatedAt(ts time.Time) func(*models.Opportunity) {
	return func(o *models.Opportunity) {
		o.CreatedAt = ts.UTC().Truncate(time.Millisecond)
		o.UpdatedAt = o.CreatedAt
	}
}

// CreateSaved inserts a saved row directly, without checking the opportunity.
func (f *Fixtures) CreateSaved(ctx context.Context, userID, opportunityID primitive.ObjectID, createdAt time.Time) models.SavedOpportunity {
	f.t.Helper()

	s := models.SavedOpportunity{
		ID:          primitive.NewObjectID(),
		User:        userID,
		Opportunity: opportunityID,
		CreatedAt:   createdAt.UTC().Truncate(time.Millisecond),
	}
	if _, err := f.db.Collection("savedopportunities").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create saved opportunity: %v", err)
	}
	return s
}
