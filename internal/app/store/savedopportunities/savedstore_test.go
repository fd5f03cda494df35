package savedstore_test

import (
	"sync"
	"testing"
	"time"

	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	savedstore "github.com/dalemusser/opportunityhub/internal/app/store/savedopportunities"
	userstore "github.com/dalemusser/opportunityhub/internal/app/store/users"
	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"github.com/dalemusser/opportunityhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	opps     *opportunitystore.Store
	saved    *savedstore.Store
	fixtures *testutil.Fixtures
	provider models.User
	seeker   models.User
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	opps := opportunitystore.New(db, userstore.New(db), zap.NewNop())
	saved := savedstore.New(db, opps, zap.NewNop())
	opps.SetCascade(saved)

	f := testutil.NewFixtures(t, db)
	return &env{
		opps:     opps,
		saved:    saved,
		fixtures: f,
		provider: f.CreateUser(ctx, "Grace", "Hopper", models.RoleProvider),
		seeker:   f.CreateUser(ctx, "Amina", "Okafor", models.RoleSeeker),
	}
}

func TestStore_SaveTwice_Duplicate(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := e.fixtures.CreateOpportunity(ctx, e.provider, "A")

	row, err := e.saved.Save(ctx, e.seeker.ID, o.ID)
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if row.User != e.seeker.ID || row.Opportunity != o.ID || row.CreatedAt.IsZero() {
		t.Errorf("row: got %+v", row)
	}

	exists, err := e.saved.Exists(ctx, e.seeker.ID, o.ID)
	if err != nil || !exists {
		t.Fatalf("Exists after save: got %v, %v", exists, err)
	}

	_, err = e.saved.Save(ctx, e.seeker.ID, o.ID)
	if !apperr.Is(err, apperr.DuplicateSave) {
		t.Fatalf("second Save: got %v, want DuplicateSave", err)
	}

	exists, err = e.saved.Exists(ctx, e.seeker.ID, o.ID)
	if err != nil || !exists {
		t.Errorf("Exists after duplicate: got %v, %v", exists, err)
	}
}

func TestStore_Save_Concurrent(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := e.fixtures.CreateOpportunity(ctx, e.provider, "Race")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.saved.Save(ctx, e.seeker.ID, o.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !apperr.Is(err, apperr.DuplicateSave):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful saves: got %d, want 1", succeeded)
	}
}

func TestStore_Save_MissingOpportunity(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.saved.Save(ctx, e.seeker.ID, primitive.NewObjectID()); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Save(missing): got %v, want NotFound", err)
	}
}

func TestStore_SaveUnsaveUnsave(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := e.fixtures.CreateOpportunity(ctx, e.provider, "A")

	if _, err := e.saved.Save(ctx, e.seeker.ID, o.ID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := e.saved.Unsave(ctx, e.seeker.ID, o.ID); err != nil {
		t.Fatalf("first Unsave failed: %v", err)
	}
	if err := e.saved.Unsave(ctx, e.seeker.ID, o.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second Unsave: got %v, want NotFound", err)
	}

	exists, err := e.saved.Exists(ctx, e.seeker.ID, o.ID)
	if err != nil || exists {
		t.Errorf("Exists after unsave: got %v, %v", exists, err)
	}
}

func TestStore_ListSaved_OrderAndJoin(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fixtures.CreateOpportunity(ctx, e.provider, "A")
	b := e.fixtures.CreateOpportunity(ctx, e.provider, "B", testutil.Inactive)
	other := e.fixtures.CreateUser(ctx, "Alan", "Turing", models.RoleSeeker)

	base := time.Now().UTC().Add(-time.Hour)
	e.fixtures.CreateSaved(ctx, e.seeker.ID, a.ID, base)
	e.fixtures.CreateSaved(ctx, e.seeker.ID, b.ID, base.Add(time.Minute))
	e.fixtures.CreateSaved(ctx, other.ID, a.ID, base)

	got, err := e.saved.ListSaved(ctx, e.seeker.ID)
	if err != nil {
		t.Fatalf("ListSaved failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len: got %d, want 2", len(got))
	}
	if got[0].Opportunity.ID != b.ID || got[1].Opportunity.ID != a.ID {
		t.Errorf("order: got %s, %s; want B, A", got[0].Opportunity.Title, got[1].Opportunity.Title)
	}
	if got[1].Opportunity.Description != a.Description {
		t.Errorf("join should carry the full opportunity, got %+v", got[1].Opportunity)
	}
	if got[0].Opportunity.ProviderRef == nil || got[0].Opportunity.ProviderRef.ID != e.provider.ID {
		t.Errorf("ProviderRef: got %+v", got[0].Opportunity.ProviderRef)
	}
}

func TestStore_ListSaved_AfterOpportunityRemoved(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fixtures.CreateOpportunity(ctx, e.provider, "A")
	if _, err := e.saved.Save(ctx, e.seeker.ID, a.ID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := e.saved.ListSaved(ctx, e.seeker.ID)
	if err != nil || len(got) != 1 || got[0].Opportunity.ID != a.ID {
		t.Fatalf("ListSaved before delete: got %v, %v", got, err)
	}

	// Remove the opportunity behind the store's back so the row is orphaned.
	if _, err := e.fixtures.DB().Collection(indexes.Opportunities).DeleteOne(ctx, bson.M{"_id": a.ID}); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}

	got, err = e.saved.ListSaved(ctx, e.seeker.ID)
	if err != nil {
		t.Fatalf("ListSaved after delete failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("orphan row should be omitted, got %d rows", len(got))
	}
}

func TestStore_DeleteCascadesToSaved(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fixtures.CreateOpportunity(ctx, e.provider, "A")
	b := e.fixtures.CreateOpportunity(ctx, e.provider, "B")
	if _, err := e.saved.Save(ctx, e.seeker.ID, a.ID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := e.saved.Save(ctx, e.seeker.ID, b.ID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := e.opps.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := e.saved.Exists(ctx, e.seeker.ID, a.ID)
	if err != nil || exists {
		t.Errorf("saved row for deleted opportunity: exists=%v err=%v", exists, err)
	}
	exists, err = e.saved.Exists(ctx, e.seeker.ID, b.ID)
	if err != nil || !exists {
		t.Errorf("unrelated saved row removed: exists=%v err=%v", exists, err)
	}
}

func TestStore_DeleteOrphans(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	live := e.fixtures.CreateOpportunity(ctx, e.provider, "Live")
	now := time.Now()
	e.fixtures.CreateSaved(ctx, e.seeker.ID, live.ID, now)
	gone := primitive.NewObjectID()
	e.fixtures.CreateSaved(ctx, e.seeker.ID, gone, now)
	e.fixtures.CreateSaved(ctx, primitive.NewObjectID(), gone, now)

	n, err := e.saved.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphans failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed: got %d, want 2", n)
	}

	n, err = e.saved.DeleteOrphans(ctx)
	if err != nil || n != 0 {
		t.Errorf("second sweep: got %d, %v; want 0", n, err)
	}

	exists, err := e.saved.Exists(ctx, e.seeker.ID, live.ID)
	if err != nil || !exists {
		t.Errorf("live row removed: exists=%v err=%v", exists, err)
	}
}
