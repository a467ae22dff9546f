package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/starboard-api/internal/middleware"
	"github.com/noah-isme/starboard-api/internal/models"
	"github.com/noah-isme/starboard-api/internal/service"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/response"
)

// AwardHandler exposes star ledger endpoints.
type AwardHandler struct {
	ledger *service.LedgerService
}

// NewAwardHandler constructs AwardHandler.
func NewAwardHandler(ledger *service.LedgerService) *AwardHandler {
	return &AwardHandler{ledger: ledger}
}

type awardPayload struct {
	StudentID string  `json:"student_id"`
	Stars     float64 `json:"stars"`
	Reason    string  `json:"reason"`
}

type notePayload struct {
	Note *string `json:"note"`
}

// Award godoc
// @Summary Award stars to a student for today
// @Description Sets today's star value for the student from this teacher. Re-sending with a new value replaces it; zero withdraws the award.
// @Tags Awards
// @Accept json
// @Produce json
// @Param payload body awardPayload true "Award payload"
// @Success 200 {object} response.Envelope
// @Router /awards [post]
func (h *AwardHandler) Award(c *gin.Context) {
	var payload awardPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := currentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.AwardStarsRequest{
		StudentID: payload.StudentID,
		TeacherID: claims.UserID,
		Stars:     payload.Stars,
		Reason:    payload.Reason,
	}
	delta, err := h.ledger.AwardStars(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, delta, nil)
}

// Revoke godoc
// @Summary Revoke a past award
// @Tags Awards
// @Produce json
// @Param id path string true "Award log ID"
// @Success 204
// @Router /awards/{id} [delete]
func (h *AwardHandler) Revoke(c *gin.Context) {
	if err := h.ledger.RevokeAward(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List award log entries
// @Tags Awards
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by awarding teacher"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /awards [get]
func (h *AwardHandler) List(c *gin.Context) {
	var filter models.AwardFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.TeacherID = c.Query("teacherId")
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &t
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	entries, pagination, err := h.ledger.ListAwards(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// UpdateNote godoc
// @Summary Attach or replace the note on an award entry
// @Tags Awards
// @Accept json
// @Produce json
// @Param id path string true "Award log ID"
// @Param payload body notePayload true "Note payload"
// @Success 204
// @Router /awards/{id}/note [patch]
func (h *AwardHandler) UpdateNote(c *gin.Context) {
	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.ledger.UpdateAwardNote(c.Request.Context(), c.Param("id"), payload.Note); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Score godoc
// @Summary Get a student's score aggregate
// @Tags Awards
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/score [get]
func (h *AwardHandler) Score(c *gin.Context) {
	score, err := h.ledger.GetScore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

func currentUser(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
