package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
	"ahorrito/internal/services"
)

// ChallengeHandler handles challenge suggestion, acceptance, and listing.
type ChallengeHandler struct {
	generatorService services.ChallengeGeneratorServicer
	progressService  services.ChallengeProgressServicer
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(
	generatorService services.ChallengeGeneratorServicer,
	progressService services.ChallengeProgressServicer,
) *ChallengeHandler {
	return &ChallengeHandler{
		generatorService: generatorService,
		progressService:  progressService,
	}
}

// ChallengeQuery holds the list endpoint's filter parameters.
type ChallengeQuery struct {
	pagination.PageRequest
	State *models.ChallengeState `form:"state" binding:"omitempty,oneof=suggested in_progress completed failed"`
}

// GetSuggestions generates or refreshes the user's suggested challenges
// @Summary     Get challenge suggestions
// @Description Generate or refresh suggested challenges sized to the user's finances; skipped categories come back as info notices
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.Suggestion "Suggestions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Challenge catalog missing"
// @Router      /challenges/suggestions [get]
func (h *ChallengeHandler) GetSuggestions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	suggestions, err := h.generatorService.GenerateForUser(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// AcceptChallenge promotes a suggested challenge to in_progress
// @Summary     Accept a challenge
// @Description Accept a suggested challenge; save-amount challenges spawn a linked goal
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Challenge instance ID"
// @Success     200 {object} models.ChallengeInstance "Challenge accepted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Challenge not found"
// @Failure     409 {object} ErrorResponse "Not suggested, or same type already in progress"
// @Router      /challenges/{id}/accept [post]
func (h *ChallengeHandler) AcceptChallenge(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instanceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	instance, err := h.progressService.Accept(userID, instanceID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": instance})
}

// GetChallenges lists the user's challenge instances
// @Summary     List challenges
// @Description List the authenticated user's challenge instances, optionally filtered by state
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       state query string false "State filter"
// @Success     200 {object} pagination.PageResponse[models.ChallengeInstance] "Challenges"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /challenges [get]
func (h *ChallengeHandler) GetChallenges(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ChallengeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	response, err := h.progressService.GetUserChallenges(userID, query.PageRequest, query.State)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RecomputeChallenges recomputes the user's in-progress challenges
// @Summary     Recompute challenges
// @Description Recompute progress for the user's in-progress challenges, returning rewards for any that completed
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.Reward "Rewards from completed challenges"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /challenges/recompute [post]
func (h *ChallengeHandler) RecomputeChallenges(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rewards, err := h.progressService.RecomputeForUser(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if rewards == nil {
		rewards = []services.Reward{}
	}

	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}
