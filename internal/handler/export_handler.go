package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/starboard-api/internal/service"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/response"
)

// ExportHandler exposes download endpoints for archived standings.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ClassStandings godoc
// @Summary Download archived class standings
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param league query string true "League"
// @Param month query string true "Month key (YYYY-MM)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exports/standings/classes [get]
func (h *ExportHandler) ClassStandings(c *gin.Context) {
	league, month := c.Query("league"), c.Query("month")
	if league == "" || month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "league and month are required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.MonthlyClassStandings(c.Request.Context(), league, month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

// StudentStandings godoc
// @Summary Download archived student standings
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param classId query string true "Class ID"
// @Param month query string true "Month key (YYYY-MM)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exports/standings/students [get]
func (h *ExportHandler) StudentStandings(c *gin.Context) {
	classID, month := c.Query("classId"), c.Query("month")
	if classID == "" || month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and month are required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.MonthlyStudentStandings(c.Request.Context(), classID, month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

func writeExport(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
