package opportunities

import (
	"context"
	"mime"
	"net/http"

	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	"github.com/dalemusser/opportunityhub/internal/app/system/attachments"
	"github.com/dalemusser/opportunityhub/internal/app/system/events"
	"github.com/dalemusser/opportunityhub/internal/app/system/limits"
	"github.com/dalemusser/opportunityhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const notFoundMsg = "Opportunity not found"

// ServeGet handles GET /{id}. Inactive opportunities are returned too.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := idOrNotFound(chi.URLParam(r, "id"), notFoundMsg)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	view, err := h.Catalog.GetByID(ctx, id)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCreate handles POST /. The body is JSON, or multipart/form-data
// with up to five "attachments" files.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ownerID, err := principalID(r)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	var in opportunitystore.Input
	paths := []string{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limits.MaxFormMemory); err != nil {
			h.writeErr(w, r, keyError, badForm(err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		if in, err = formInput(r.MultipartForm.Value); err != nil {
			h.writeErr(w, r, keyError, err)
			return
		}
		if files := r.MultipartForm.File[attachments.FormField]; len(files) > 0 {
			if h.Uploader == nil {
				h.writeErr(w, r, keyError, errUploadsDisabled)
				return
			}
			if paths, err = h.Uploader.SaveAll(r.Context(), files); err != nil {
				h.writeErr(w, r, keyError, err)
				return
			}
		}
	} else if err := decodeJSON(r, &in); err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	view, err := h.Catalog.Create(ctx, in, ownerID, p.DisplayName(), paths)
	if err != nil {
		// Files are written before validation; a rejected Create removes them.
		if len(paths) > 0 {
			h.Uploader.Discard(paths)
		}
		h.writeErr(w, r, keyError, err)
		return
	}

	h.Log.Info("opportunity created",
		zap.String("opportunity_id", view.ID.Hex()),
		zap.String("provider_id", p.ID),
		zap.Int("attachments", len(paths)))
	h.publish(r, events.OpportunityCreated, view.ID, nil)

	writeJSON(w, http.StatusCreated, view)
}

// HandleUpdate handles PUT /{id} with a partial JSON body.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idOrNotFound(chi.URLParam(r, "id"), notFoundMsg)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	var patch opportunitystore.Patch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	view, err := h.Catalog.Update(ctx, id, patch)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}
	h.publish(r, events.OpportunityUpdated, id, nil)
	writeJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /{id}. Saved rows for the opportunity go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idOrNotFound(chi.URLParam(r, "id"), notFoundMsg)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Catalog.Delete(ctx, id); err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	h.Log.Info("opportunity deleted", zap.String("opportunity_id", id.Hex()))
	h.publish(r, events.OpportunityDeleted, id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Opportunity deleted successfully"})
}

type statusRequest struct {
	IsActive *bool `json:"isActive"`
}

// HandleStatus handles PUT /{id}/status for admins.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idOrNotFound(chi.URLParam(r, "id"), "Opportunity not found.")
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	var body statusRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	if body.IsActive == nil {
		h.writeErr(w, r, keyMessage, errIsActiveRequired)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	view, err := h.Catalog.SetActive(ctx, id, *body.IsActive)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	h.Log.Info("opportunity status changed",
		zap.String("opportunity_id", id.Hex()),
		zap.Bool("is_active", *body.IsActive))
	h.publish(r, events.OpportunityStatus, id, func(e *events.Event) { e.IsActive = body.IsActive })
	writeJSON(w, http.StatusOK, view)
}

// ServeByProvider handles GET /provider/{providerId}: every posting of one
// provider, inactive included.
func (h *Handler) ServeByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := objectID("providerId", chi.URLParam(r, "providerId"))
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	views, err := h.Catalog.ListByProvider(ctx, providerID)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
