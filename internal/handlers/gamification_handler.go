package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ahorrito/internal/logger"
	"ahorrito/internal/services"
)

// GamificationHandler exposes the user's gamification standing.
type GamificationHandler struct {
	gamificationService services.GamificationServicer
	progressService     services.ChallengeProgressServicer
}

// NewGamificationHandler creates a new GamificationHandler.
func NewGamificationHandler(
	gamificationService services.GamificationServicer,
	progressService services.ChallengeProgressServicer,
) *GamificationHandler {
	return &GamificationHandler{
		gamificationService: gamificationService,
		progressService:     progressService,
	}
}

// GetProfile returns the user's gamification profile
// @Summary     Get gamification profile
// @Description Recompute the user's in-progress challenges, then return points, level, streak, badges, and challenge counts
// @Tags        gamification
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.GamificationProfile "Gamification profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /gamification/profile [get]
func (h *GamificationHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Viewing the profile is a recompute trigger, so the numbers shown are
	// never staler than the request itself. A recompute failure must not
	// hide the profile.
	rewards, err := h.progressService.RecomputeForUser(userID)
	if err != nil {
		logger.Get().Warnw("challenge recompute on profile view failed",
			"user_id", userID, "error", err)
	}

	profile, err := h.gamificationService.GetProfile(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	response := gin.H{"profile": profile}
	if len(rewards) > 0 {
		response["rewards"] = rewards
	}
	c.JSON(http.StatusOK, response)
}
