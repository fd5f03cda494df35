package opportunities_test

import (
	"bytes"
	"context"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/opportunityhub/internal/app/features/opportunities"
	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	savedstore "github.com/dalemusser/opportunityhub/internal/app/store/savedopportunities"
	userstore "github.com/dalemusser/opportunityhub/internal/app/store/users"
	"github.com/dalemusser/opportunityhub/internal/app/system/attachments"
	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/dalemusser/opportunityhub/internal/app/system/events"
	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"github.com/dalemusser/opportunityhub/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	// bounded reports, per event, whether its context carried a deadline
	// and was still live when Publish ran.
	bounded []bool
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	p.events = append(p.events, e)
	p.bounded = append(p.bounded, hasDeadline && ctx.Err() == nil)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type server struct {
	router   http.Handler
	fixtures *testutil.Fixtures
	pub      *recordingPublisher
	provider models.User
	seeker   models.User
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerWith(t, nil)
}

func newServerWith(t *testing.T, uploader opportunities.Uploader) *server {
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

	pub := &recordingPublisher{}
	h := opportunities.NewHandler(opps, saved, uploader, pub, zap.NewNop())

	f := testutil.NewFixtures(t, db)
	return &server{
		router:   opportunities.Routes(h),
		fixtures: f,
		pub:      pub,
		provider: f.CreateUser(ctx, "Grace", "Hopper", models.RoleProvider),
		seeker:   f.CreateUser(ctx, "Amina", "Okafor", models.RoleSeeker),
	}
}

func (s *server) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type viewBody struct {
	ID           string `json:"_id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	ProviderName string `json:"providerName"`
	IsActive     bool   `json:"isActive"`
	Provider     *struct {
		ID        string `json:"_id"`
		FirstName string `json:"firstName"`
	} `json:"provider"`
}

type listBody struct {
	Success    bool       `json:"success"`
	Data       []viewBody `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

func createBody() map[string]any {
	return map[string]any{
		"title":               "Backend Engineer",
		"description":         "Build APIs",
		"type":                "job",
		"category":            "Engineering",
		"location":            "Lagos",
		"applicationDeadline": "2030-01-31",
		"salary":              map[string]any{"min": 1000, "max": 2000},
	}
}

func TestCreate_ReturnsViewWithProvider(t *testing.T) {
	s := newServer(t)

	rec := s.do(testutil.NewAuthenticatedRequest(t, "POST", "/", createBody(), testutil.PrincipalFor(s.provider)))
	rec.AssertStatus(t, http.StatusCreated)

	var got viewBody
	rec.DecodeJSON(t, &got)
	if got.ID == "" || got.Title != "Backend Engineer" || !got.IsActive {
		t.Errorf("created view: got %+v", got)
	}
	if got.ProviderName != "Grace Hopper" {
		t.Errorf("providerName: got %q, want %q", got.ProviderName, "Grace Hopper")
	}
	if got.Provider == nil || got.Provider.ID != s.provider.ID.Hex() {
		t.Errorf("provider: got %+v, want id %s", got.Provider, s.provider.ID.Hex())
	}
	if types := s.pub.types(); len(types) != 1 || types[0] != events.OpportunityCreated {
		t.Errorf("events: got %v", types)
	}
	if len(s.pub.bounded) != 1 || !s.pub.bounded[0] {
		t.Errorf("event context should be live and carry a deadline, got %v", s.pub.bounded)
	}
}

func TestCreate_RequiresPrincipal(t *testing.T) {
	s := newServer(t)

	rec := s.do(testutil.NewJSONRequest(t, "POST", "/", createBody()))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestCreate_ValidationFailure(t *testing.T) {
	s := newServer(t)

	body := createBody()
	body["type"] = "volunteer"
	delete(body, "title")

	rec := s.do(testutil.NewAuthenticatedRequest(t, "POST", "/", body, testutil.PrincipalFor(s.provider)))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"title"`)
	rec.AssertContains(t, `"type"`)
	if n := len(s.pub.types()); n != 0 {
		t.Errorf("expected no events on failure, got %d", n)
	}
}

// multipartCreate builds a signed-in multipart create request with one
// attachment per file name.
func multipartCreate(t *testing.T, s *server, fields map[string]string, files ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, name := range files {
		fw, err := mw.CreateFormFile(attachments.FormField, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte("contents of " + name))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return auth.WithPrincipal(req, testutil.PrincipalFor(s.provider))
}

func multipartFields() map[string]string {
	return map[string]string{
		"title":               "Design Intern",
		"description":         "Prototype screens",
		"type":                "internship",
		"category":            "Design",
		"location":            "Nairobi",
		"applicationDeadline": "2030-03-01",
		"tags":                "figma,ux",
	}
}

// storedFiles lists the regular files under root.
func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return out
}

func localUploader(t *testing.T) (*attachments.Uploader, string) {
	t.Helper()
	root := t.TempDir()
	local, err := storage.NewLocal(storage.LocalConfig{BasePath: root, BaseURL: "uploads"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return attachments.NewUploader(local, "opportunities", zap.NewNop()), root
}

func TestCreate_MultipartStoresAttachments(t *testing.T) {
	uploader, root := localUploader(t)
	s := newServerWith(t, uploader)

	rec := s.do(multipartCreate(t, s, multipartFields(), "brief.pdf", "portfolio.zip"))
	rec.AssertStatus(t, http.StatusCreated)

	var got struct {
		Attachments []string `json:"attachments"`
		Tags        []string `json:"tags"`
	}
	rec.DecodeJSON(t, &got)
	if len(got.Attachments) != 2 || !strings.HasPrefix(got.Attachments[0], "uploads/opportunities/") {
		t.Errorf("attachments: got %v", got.Attachments)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags: got %v", got.Tags)
	}
	if files := storedFiles(t, root); len(files) != 2 {
		t.Errorf("stored files: got %v", files)
	}
}

func TestCreate_RejectedMultipartLeavesNoFiles(t *testing.T) {
	uploader, root := localUploader(t)
	s := newServerWith(t, uploader)

	fields := multipartFields()
	fields["type"] = "volunteer"

	rec := s.do(multipartCreate(t, s, fields, "brief.pdf", "portfolio.zip"))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"type"`)
	if files := storedFiles(t, root); len(files) != 0 {
		t.Errorf("rejected create left files behind: %v", files)
	}
}

func TestCreate_MultipartWithoutUploader(t *testing.T) {
	s := newServer(t)

	rec := s.do(multipartCreate(t, s, multipartFields(), "brief.pdf"))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"attachments"`)
}

func TestCreate_MalformedJSON(t *testing.T) {
	s := newServer(t)

	rec := s.do(testutil.NewAuthenticatedRequest(t, "POST", "/", "{not json", testutil.PrincipalFor(s.provider)))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestList_Envelope(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s.fixtures.CreateOpportunity(ctx, s.provider, "Active one")
	s.fixtures.CreateOpportunity(ctx, s.provider, "Active two")
	s.fixtures.CreateOpportunity(ctx, s.provider, "Hidden", testutil.Inactive)

	rec := s.do(testutil.NewRequest("GET", "/?limit=1"))
	rec.AssertStatus(t, http.StatusOK)

	var got listBody
	rec.DecodeJSON(t, &got)
	if !got.Success || got.Total != 2 || got.Page != 1 || got.TotalPages != 2 || len(got.Data) != 1 {
		t.Errorf("envelope: got %+v", got)
	}

	rec = s.do(testutil.NewRequest("GET", "/?isActive=false"))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &got)
	if got.Total != 1 || len(got.Data) != 1 || got.Data[0].Title != "Hidden" {
		t.Errorf("isActive=false: got %+v", got)
	}
}

func TestList_SearchKeepsSpaces(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s.fixtures.CreateOpportunity(ctx, s.provider, "Data Analyst")
	s.fixtures.CreateOpportunity(ctx, s.provider, "Database Administrator")

	rec := s.do(testutil.NewRequest("GET", "/?search=data%20"))
	rec.AssertStatus(t, http.StatusOK)

	var got listBody
	rec.DecodeJSON(t, &got)
	if got.Total != 1 || len(got.Data) != 1 || got.Data[0].Title != "Data Analyst" {
		t.Errorf("search %q: got %+v", "data ", got)
	}

	rec = s.do(testutil.NewRequest("GET", "/?search=%20%20"))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &got)
	if got.Total != 2 {
		t.Errorf("blank search should not filter, got total %d", got.Total)
	}
}

func TestList_PageBeyondEnd(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s.fixtures.CreateOpportunity(ctx, s.provider, "Only")

	rec := s.do(testutil.NewRequest("GET", "/?page=5"))
	rec.AssertStatus(t, http.StatusOK)

	var got listBody
	rec.DecodeJSON(t, &got)
	if got.Data == nil || len(got.Data) != 0 || got.Total != 1 || got.Page != 5 {
		t.Errorf("envelope: got %+v", got)
	}
}

func TestGet(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := s.fixtures.CreateOpportunity(ctx, s.provider, "Hidden", testutil.Inactive)

	rec := s.do(testutil.NewRequest("GET", "/"+o.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var got viewBody
	rec.DecodeJSON(t, &got)
	if got.ID != o.ID.Hex() || got.IsActive {
		t.Errorf("get: got %+v", got)
	}

	s.do(testutil.NewRequest("GET", "/"+primitive.NewObjectID().Hex())).AssertStatus(t, http.StatusNotFound)
	s.do(testutil.NewRequest("GET", "/not-an-id")).AssertStatus(t, http.StatusNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := s.fixtures.CreateOpportunity(ctx, s.provider, "Old title")
	p := testutil.PrincipalFor(s.provider)

	rec := s.do(testutil.NewAuthenticatedRequest(t, "PUT", "/"+o.ID.Hex(), map[string]any{"title": "New title"}, p))
	rec.AssertStatus(t, http.StatusOK)
	var got viewBody
	rec.DecodeJSON(t, &got)
	if got.Title != "New title" {
		t.Errorf("title: got %q, want %q", got.Title, "New title")
	}

	rec = s.do(testutil.NewAuthenticatedRequest(t, "DELETE", "/"+o.ID.Hex(), nil, p))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Opportunity deleted successfully")

	s.do(testutil.NewRequest("GET", "/"+o.ID.Hex())).AssertStatus(t, http.StatusNotFound)
	s.do(testutil.NewAuthenticatedRequest(t, "DELETE", "/"+o.ID.Hex(), nil, p)).AssertStatus(t, http.StatusNotFound)
}

func TestStatus_AdminOnly(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := s.fixtures.CreateOpportunity(ctx, s.provider, "Gated")
	body := map[string]any{"isActive": false}

	rec := s.do(testutil.NewAuthenticatedRequest(t, "PUT", "/"+o.ID.Hex()+"/status", body, testutil.PrincipalFor(s.provider)))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = s.do(testutil.NewAuthenticatedRequest(t, "PUT", "/"+o.ID.Hex()+"/status", body, testutil.AdminPrincipal()))
	rec.AssertStatus(t, http.StatusOK)
	var got viewBody
	rec.DecodeJSON(t, &got)
	if got.IsActive {
		t.Errorf("expected opportunity to be inactive")
	}

	rec = s.do(testutil.NewAuthenticatedRequest(t, "PUT", "/"+o.ID.Hex()+"/status", map[string]any{}, testutil.AdminPrincipal()))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestByProvider_IncludesInactive(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s.fixtures.CreateOpportunity(ctx, s.provider, "Open")
	s.fixtures.CreateOpportunity(ctx, s.provider, "Closed", testutil.Inactive)

	rec := s.do(testutil.NewRequest("GET", "/provider/"+s.provider.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var got []viewBody
	rec.DecodeJSON(t, &got)
	if len(got) != 2 {
		t.Errorf("expected 2 opportunities, got %d", len(got))
	}
}

func TestSaveFlow(t *testing.T) {
	s := newServer(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o := s.fixtures.CreateOpportunity(ctx, s.provider, "Bookmark me")
	p := testutil.PrincipalFor(s.seeker)
	body := map[string]string{"opportunityId": o.ID.Hex()}
	check := "/saved/" + s.seeker.ID.Hex() + "/" + o.ID.Hex()

	rec := s.do(testutil.NewAuthenticatedRequest(t, "POST", "/save", body, p))
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, "Opportunity saved successfully.")

	rec = s.do(testutil.NewAuthenticatedRequest(t, "POST", "/save", body, p))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"message":"Opportunity already saved."`)

	rec = s.do(testutil.NewAuthenticatedRequest(t, "GET", check, nil, p))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"saved":true`)

	rec = s.do(testutil.NewAuthenticatedRequest(t, "GET", "/saved", nil, p))
	rec.AssertStatus(t, http.StatusOK)
	var rows []struct {
		Opportunity viewBody `json:"opportunity"`
	}
	rec.DecodeJSON(t, &rows)
	if len(rows) != 1 || rows[0].Opportunity.ID != o.ID.Hex() {
		t.Errorf("saved list: got %+v", rows)
	}

	rec = s.do(testutil.NewAuthenticatedRequest(t, "DELETE", "/"+o.ID.Hex()+"/save", nil, p))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Opportunity unsaved successfully.")

	rec = s.do(testutil.NewAuthenticatedRequest(t, "DELETE", "/"+o.ID.Hex()+"/save", nil, p))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "Saved opportunity not found.")

	rec = s.do(testutil.NewAuthenticatedRequest(t, "GET", check, nil, p))
	rec.AssertContains(t, `"saved":false`)

	want := []string{events.OpportunitySaved, events.OpportunityUnsaved}
	if got := s.pub.types(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events: got %v, want %v", got, want)
	}
}

func TestSave_UnknownOpportunity(t *testing.T) {
	s := newServer(t)

	body := map[string]string{"opportunityId": primitive.NewObjectID().Hex()}
	rec := s.do(testutil.NewAuthenticatedRequest(t, "POST", "/save", body, testutil.PrincipalFor(s.seeker)))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "Opportunity not found.")
}

func TestSavedRoutesNeedPrincipal(t *testing.T) {
	s := newServer(t)

	s.do(testutil.NewRequest("GET", "/saved")).AssertStatus(t, http.StatusUnauthorized)
	s.do(testutil.NewJSONRequest(t, "POST", "/save", map[string]string{})).AssertStatus(t, http.StatusUnauthorized)
}
