package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/services"
)

type assetHistory interface {
	GetDailyAssets(ctx context.Context, userID string, from, to *time.Time) ([]models.DailyAssetSnapshot, error)
}

type AssetHandler struct {
	snapshots      assetHistory
	exposeInternal bool
}

func NewAssetHandler(snapshots assetHistory, exposeInternal bool) *AssetHandler {
	return &AssetHandler{snapshots: snapshots, exposeInternal: exposeInternal}
}

// DailyAssets returns the end-of-day asset position for each day in range
// @Summary Daily asset history
// @Tags Assets
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day (YYYY-MM-DD), default 29 days before to"
// @Param to query string false "Last day (YYYY-MM-DD), default today"
// @Success 200 {object} object{success=bool,snapshots=[]models.DailyAssetSnapshot}
// @Failure 400 {object} services.ErrorResponse
// @Router /assets/daily [get]
func (h *AssetHandler) DailyAssets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := queryDate(q.Get("from"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid from: "+err.Error(), http.StatusBadRequest, nil)
		return
	}
	to, err := queryDate(q.Get("to"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid to: "+err.Error(), http.StatusBadRequest, nil)
		return
	}

	snaps, err := h.snapshots.GetDailyAssets(r.Context(), userID, from, to)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "snapshots": snaps})
}

func queryDate(raw string) (*time.Time, error) {
	return parseOptionalDate(&raw)
}
