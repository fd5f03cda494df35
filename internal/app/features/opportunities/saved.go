package opportunities

import (
	"context"
	"net/http"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/events"
	"github.com/dalemusser/opportunityhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type saveRequest struct {
	OpportunityID string `json:"opportunityId"`
}

// HandleSave handles POST /save for the signed-in seeker.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	_, userID, err := principalID(r)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	var body saveRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	if body.OpportunityID == "" {
		h.writeErr(w, r, keyMessage, apperr.Invalid("opportunityId", "is required"))
		return
	}
	oppID, err := idOrNotFound(body.OpportunityID, "Opportunity not found.")
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Saved.Save(ctx, userID, oppID); err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	h.Log.Info("opportunity saved",
		zap.String("user_id", userID.Hex()),
		zap.String("opportunity_id", oppID.Hex()))
	h.publish(r, events.OpportunitySaved, oppID, nil)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Opportunity saved successfully."})
}

// HandleUnsave handles DELETE /{id}/save.
func (h *Handler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	_, userID, err := principalID(r)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	oppID, err := idOrNotFound(chi.URLParam(r, "id"), "Saved opportunity not found.")
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Saved.Unsave(ctx, userID, oppID); err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	h.publish(r, events.OpportunityUnsaved, oppID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Opportunity unsaved successfully."})
}

// ServeSaved handles GET /saved: the caller's saved opportunities, newest first.
func (h *Handler) ServeSaved(w http.ResponseWriter, r *http.Request) {
	_, userID, err := principalID(r)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Saved.ListSaved(ctx, userID)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ServeSavedCheck handles GET /saved/{userId}/{opportunityId}.
func (h *Handler) ServeSavedCheck(w http.ResponseWriter, r *http.Request) {
	userID, err := objectID("userId", chi.URLParam(r, "userId"))
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	oppID, err := objectID("opportunityId", chi.URLParam(r, "opportunityId"))
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	saved, err := h.Saved.Exists(ctx, userID, oppID)
	if err != nil {
		h.writeErr(w, r, keyMessage, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}
