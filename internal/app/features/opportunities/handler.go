// internal/app/features/opportunities/handler.go
package opportunities

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/dalemusser/opportunityhub/internal/app/system/events"
	"github.com/dalemusser/opportunityhub/internal/app/system/timeouts"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Catalog is the opportunity store surface the handlers use.
type Catalog interface {
	Create(ctx context.Context, in opportunitystore.Input, ownerID primitive.ObjectID, ownerName string, attachments []string) (models.OpportunityView, error)
	List(ctx context.Context, q opportunitystore.ListQuery) (opportunitystore.Page, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.OpportunityView, error)
	Update(ctx context.Context, id primitive.ObjectID, p opportunitystore.Patch) (models.OpportunityView, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByProvider(ctx context.Context, providerID primitive.ObjectID) ([]models.OpportunityView, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.OpportunityView, error)
}

// Saves is the save relation surface the handlers use.
type Saves interface {
	Exists(ctx context.Context, userID, opportunityID primitive.ObjectID) (bool, error)
	Save(ctx context.Context, userID, opportunityID primitive.ObjectID) (models.SavedOpportunity, error)
	Unsave(ctx context.Context, userID, opportunityID primitive.ObjectID) error
	ListSaved(ctx context.Context, userID primitive.ObjectID) ([]models.SavedOpportunityView, error)
}

// Uploader turns request files into attachment paths and removes them
// again when the opportunity they were meant for is not created.
type Uploader interface {
	SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
	Discard(paths []string)
}

// Handler owns the /api/opportunities endpoints.
//
// It is constructed once at startup in bootstrap.
type Handler struct {
	Catalog  Catalog
	Saved    Saves
	Uploader Uploader
	Events   events.Publisher
	Log      *zap.Logger

	// WriteLimit, when set, wraps the mutating routes.
	WriteLimit func(http.Handler) http.Handler
}

// NewHandler wires the handler. A nil publisher disables events.
func NewHandler(catalog Catalog, saved Saves, uploader Uploader, pub events.Publisher, logger *zap.Logger) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{
		Catalog:  catalog,
		Saved:    saved,
		Uploader: uploader,
		Events:   pub,
		Log:      logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| JSON helpers                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// errorKey selects the body key failures are reported under. The save
// endpoints use "message"; everything else uses "error".
type errorKey string

const (
	keyError   errorKey = "error"
	keyMessage errorKey = "message"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, key errorKey, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", apperr.KindOf(err).String()),
			zap.Error(err))
	}

	body := map[string]any{string(key): apperr.PublicMessage(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) && len(ae.Fields) > 0 {
		body["error"] = apperr.PublicMessage(err)
		body["fields"] = ae.Fields
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.Invalid("body", "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Invalid("body", "request body too large")
		}
		return apperr.Invalid("body", "malformed JSON: "+err.Error())
	}
	return nil
}

// objectID parses a hex id from the URL or body.
func objectID(field, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid(field, "must be a valid id")
	}
	return id, nil
}

// idOrNotFound treats a malformed path id as an unknown entity, the way a
// lookup by a non-existent id would answer.
func idOrNotFound(raw, msg string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.NewNotFound(msg)
	}
	return id, nil
}

// principalID returns the signed-in user's ObjectID.
func principalID(r *http.Request) (*auth.Principal, primitive.ObjectID, error) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok {
		return nil, primitive.NilObjectID, apperr.NewUnauthorized("Not authorized, no valid credentials")
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, primitive.NilObjectID, apperr.NewUnauthorized("Not authorized, invalid user id")
	}
	return p, id, nil
}

func (h *Handler) publish(r *http.Request, typ string, opportunityID primitive.ObjectID, mut func(*events.Event)) {
	e := events.Event{Type: typ, OpportunityID: opportunityID.Hex()}
	if p, ok := auth.CurrentPrincipal(r); ok {
		e.UserID = p.ID
	}
	if mut != nil {
		mut(&e)
	}
	// Delivery outlives the request but not the short timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Short())
	defer cancel()
	h.Events.Publish(ctx, e)
}
