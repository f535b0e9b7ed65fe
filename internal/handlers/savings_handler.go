package handlers

import (
	"context"
	"net/http"

	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/services"
	"github.com/shopspring/decimal"
)

type goalStore interface {
	CreateGoal(ctx context.Context, userID string, in services.NewGoal) (*models.SavingsGoal, error)
	ListGoals(ctx context.Context, userID string) ([]models.SavingsGoal, error)
	Allocate(ctx context.Context, userID string, a services.Allocation) (*models.SavingsGoal, error)
	Deallocate(ctx context.Context, userID string, goalID int64, amount decimal.Decimal) (*models.SavingsGoal, error)
}

type SavingsHandler struct {
	goals          goalStore
	validator      *services.ValidationHelper
	exposeInternal bool
}

func NewSavingsHandler(goals goalStore, exposeInternal bool) *SavingsHandler {
	return &SavingsHandler{
		goals:          goals,
		validator:      services.NewValidationHelper(),
		exposeInternal: exposeInternal,
	}
}

type createGoalRequest struct {
	GoalName     string          `json:"goalName" validate:"required,max=100"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   *string         `json:"targetDate,omitempty"`
}

type allocateRequest struct {
	GoalID   int64           `json:"goalId" validate:"required,gt=0"`
	WalletID int64           `json:"walletId" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
}

type deallocateRequest struct {
	GoalID int64           `json:"goalId" validate:"required,gt=0"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateGoal
// @Summary Create savings goal
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createGoalRequest true "Goal"
// @Success 201 {object} object{success=bool,goal=models.SavingsGoal}
// @Failure 400 {object} services.ErrorResponse
// @Router /savings-goals [post]
func (h *SavingsHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createGoalRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	targetDate, err := parseOptionalDate(req.TargetDate)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	goal, err := h.goals.CreateGoal(r.Context(), userID, services.NewGoal{
		GoalName:     req.GoalName,
		TargetAmount: req.TargetAmount,
		TargetDate:   targetDate,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "goal": goal})
}

// ListGoals
// @Summary List savings goals
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,goals=[]models.SavingsGoal}
// @Router /savings-goals [get]
func (h *SavingsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	goals, err := h.goals.ListGoals(r.Context(), userID)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "goals": goals})
}

// Allocate
// @Summary Allocate savings to a goal
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body allocateRequest true "Allocation"
// @Success 200 {object} object{success=bool,goal=models.SavingsGoal}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /savings-goals/allocate [post]
func (h *SavingsHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req allocateRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	goal, err := h.goals.Allocate(r.Context(), userID, services.Allocation{
		GoalID:   req.GoalID,
		WalletID: req.WalletID,
		Amount:   req.Amount,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "goal": goal})
}

// Deallocate
// @Summary Return savings from a goal
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body deallocateRequest true "Deallocation"
// @Success 200 {object} object{success=bool,goal=models.SavingsGoal}
// @Failure 400 {object} services.ErrorResponse
// @Router /savings-goals/deallocate [post]
func (h *SavingsHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req deallocateRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	goal, err := h.goals.Deallocate(r.Context(), userID, req.GoalID, req.Amount)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "goal": goal})
}
