package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/starboard-api/internal/models"
	"github.com/noah-isme/starboard-api/internal/service"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/response"
)

// StandingsHandler exposes leaderboard and milestone endpoints.
type StandingsHandler struct {
	ranking *service.RankingService
}

// NewStandingsHandler constructs StandingsHandler.
func NewStandingsHandler(ranking *service.RankingService) *StandingsHandler {
	return &StandingsHandler{ranking: ranking}
}

// Classes godoc
// @Summary Live class standings for a league
// @Tags Standings
// @Produce json
// @Param league query string true "League"
// @Success 200 {object} response.Envelope
// @Router /standings/classes [get]
func (h *StandingsHandler) Classes(c *gin.Context) {
	league := c.Query("league")
	if league == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "league is required"))
		return
	}
	standings, err := h.ranking.ClassStandings(c.Request.Context(), league)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// Students godoc
// @Summary Live student standings for a class
// @Tags Standings
// @Produce json
// @Param classId query string true "Class ID"
// @Param metric query string false "monthly or total" default(monthly)
// @Success 200 {object} response.Envelope
// @Router /standings/students [get]
func (h *StandingsHandler) Students(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId is required"))
		return
	}
	metric := models.RankMetric(c.DefaultQuery("metric", string(models.MetricMonthly)))
	if metric != models.MetricMonthly && metric != models.MetricTotal {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "metric must be monthly or total"))
		return
	}
	standings, err := h.ranking.StudentStandings(c.Request.Context(), classID, metric)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// ClassHistory godoc
// @Summary Archived class standings for a month
// @Tags Standings
// @Produce json
// @Param league query string true "League"
// @Param month query string true "Month key (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /standings/classes/history [get]
func (h *StandingsHandler) ClassHistory(c *gin.Context) {
	league, month := c.Query("league"), c.Query("month")
	if league == "" || month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "league and month are required"))
		return
	}
	standings, err := h.ranking.HistoricalClassStandings(c.Request.Context(), league, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// StudentHistory godoc
// @Summary Archived student standings for a month
// @Tags Standings
// @Produce json
// @Param classId query string true "Class ID"
// @Param month query string true "Month key (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /standings/students/history [get]
func (h *StandingsHandler) StudentHistory(c *gin.Context) {
	classID, month := c.Query("classId"), c.Query("month")
	if classID == "" || month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and month are required"))
		return
	}
	standings, err := h.ranking.HistoricalStudentStandings(c.Request.Context(), classID, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// Milestones godoc
// @Summary Milestone thresholds and progress for a class
// @Tags Standings
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/milestones [get]
func (h *StandingsHandler) Milestones(c *gin.Context) {
	standing, err := h.ranking.MilestoneProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}
