package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
	"ahorrito/internal/services"
)

// TransactionHandler handles transaction-related requests. Creating a
// transaction synchronously recomputes the user's in-progress challenges so
// completions surface in the response.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	progressService    services.ChallengeProgressServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(
	transactionService services.TransactionServicer,
	progressService services.ChallengeProgressServicer,
) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		progressService:    progressService,
	}
}

// CreateTransactionRequest represents the request payload for recording a transaction.
type CreateTransactionRequest struct {
	AccountID   uint                   `json:"account_id" binding:"required"`
	GoalID      *uint                  `json:"goal_id"`
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount      float64                `json:"amount" binding:"required,gt=0"`
	Description string                 `json:"description" binding:"max=500"`
	Date        *time.Time             `json:"date"`
}

// TransactionQuery holds the list endpoint's filter parameters.
type TransactionQuery struct {
	pagination.PageRequest
	From *time.Time              `form:"from" time_format:"2006-01-02"`
	To   *time.Time              `form:"to" time_format:"2006-01-02"`
	Type *models.TransactionType `form:"type" binding:"omitempty,transaction_type"`
}

// CreateTransaction records a financial movement
// @Summary     Record a transaction
// @Description Record a movement on one of the user's accounts; saving transactions may target a goal
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}

	transaction, err := h.transactionService.CreateTransaction(
		userID,
		req.AccountID,
		req.GoalID,
		req.Type,
		req.Amount,
		req.Description,
		date,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Recompute in-progress challenges so a completion triggered by this
	// transaction shows up immediately. A recompute failure never fails the
	// write that already committed.
	rewards, err := h.progressService.RecomputeForUser(userID)
	if err != nil {
		logger.Get().Errorw("challenge recompute after transaction failed",
			"user_id", userID, "error", err)
	}

	response := gin.H{"transaction": transaction}
	if len(rewards) > 0 {
		response["rewards"] = rewards
	}
	c.JSON(http.StatusCreated, response)
}

// GetTransactions lists the authenticated user's transactions
// @Summary     List transactions
// @Description List the authenticated user's transactions with optional date and type filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       from query string false "From date (YYYY-MM-DD)"
// @Param       to query string false "To date (YYYY-MM-DD)"
// @Param       type query string false "Transaction type"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.TransactionFilter{
		FromDate: query.From,
		ToDate:   query.To,
		Type:     query.Type,
	}
	response, err := h.transactionService.GetUserTransactions(userID, query.PageRequest, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
