package opportunities

import (
	"context"
	"net/http"

	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	"github.com/dalemusser/opportunityhub/internal/app/system/paging"
	"github.com/dalemusser/opportunityhub/internal/app/system/timeouts"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type listResponse struct {
	Success    bool                     `json:"success"`
	Data       []models.OpportunityView `json:"data"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	TotalPages int                      `json:"totalPages"`
}

// listQuery reads the discovery filters. Boolean flags are true only for
// the literal "true"; any other value present means false.
func listQuery(r *http.Request) opportunitystore.ListQuery {
	q := opportunitystore.DefaultListQuery()
	values := r.URL.Query()

	q.Type = query.Get(r, "type")
	q.Category = query.Get(r, "category")
	// Search text is matched as sent, spaces included.
	q.Search = values.Get("search")
	if values.Has("isRemote") {
		v := values.Get("isRemote") == "true"
		q.IsRemote = &v
	}
	if values.Has("isActive") {
		v := values.Get("isActive") == "true"
		q.IsActive = &v
	}
	q.Page = paging.ParsePage(r)
	q.PageSize = paging.ParseLimit(r)
	return q
}

// ServeList handles GET /.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	q := listQuery(r)
	page, err := h.Catalog.List(ctx, q)
	if err != nil {
		h.writeErr(w, r, keyError, err)
		return
	}

	h.Log.Debug("opportunities listed",
		zap.Int64("total", page.Total),
		zap.Int("page", page.Page),
		zap.Int("page_size", q.PageSize))

	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       page.Items,
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	})
}
