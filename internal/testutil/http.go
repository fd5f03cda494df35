package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProviderPrincipal returns a principal with provider role.
func ProviderPrincipal() *auth.Principal {
	return &auth.Principal{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Provider",
		Email:     "provider@test.com",
		Role:      models.RoleProvider,
	}
}

// SeekerPrincipal returns a principal with seeker role.
func SeekerPrincipal() *auth.Principal {
	return &auth.Principal{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Seeker",
		Email:     "seeker@test.com",
		Role:      models.RoleSeeker,
	}
}

// AdminPrincipal returns a principal with admin role.
func AdminPrincipal() *auth.Principal {
	return &auth.Principal{
		ID:        primitive.NewObjectID().Hex(),
		FirstName: "Test",
		LastName:  "Admin",
		Email:     "admin@test.com",
		Role:      models.RoleAdmin,
	}
}

// PrincipalFor builds a principal from a fixture user.
func PrincipalFor(u models.User) *auth.Principal {
	return &auth.Principal{
		ID:        u.ID.Hex(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func NewJSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body io.Reader
	switch b := v.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates a JSON request with p in context.
func NewAuthenticatedRequest(t *testing.T, method, target string, v any, p *auth.Principal) *http.Request {
	t.Helper()
	return auth.WithPrincipal(NewJSONRequest(t, method, target, v), p)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the response body into v.
func (r *ResponseRecorder) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}
