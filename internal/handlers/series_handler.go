package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ahorrito/internal/services"
)

// SeriesHandler exposes cached external data series.
type SeriesHandler struct {
	seriesService services.SeriesCacheServicer
}

// NewSeriesHandler creates a new SeriesHandler.
func NewSeriesHandler(seriesService services.SeriesCacheServicer) *SeriesHandler {
	return &SeriesHandler{seriesService: seriesService}
}

// GetCurrent returns the current value of a series
// @Summary     Get current series value
// @Description Get the current cached value and status of a named data series
// @Tags        series
// @Produce     json
// @Security    BearerAuth
// @Param       name path string true "Series name"
// @Success     200 {object} models.SeriesPointer "Current series pointer"
// @Failure     404 {object} ErrorResponse "Series not found"
// @Router      /series/{name} [get]
func (h *SeriesHandler) GetCurrent(c *gin.Context) {
	pointer, err := h.seriesService.Current(c.Param("name"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"series": pointer})
}

// GetHistory returns a series' snapshot history
// @Summary     Get series history
// @Description Get historical snapshots of a named data series, most recent version first
// @Tags        series
// @Produce     json
// @Security    BearerAuth
// @Param       name path string true "Series name"
// @Param       limit query int false "Maximum snapshots to return"
// @Success     200 {array} models.SeriesSnapshot "Snapshots"
// @Router      /series/{name}/history [get]
func (h *SeriesHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	snapshots, err := h.seriesService.History(c.Param("name"), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}
