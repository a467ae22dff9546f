package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/starboard-api/internal/service"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/response"
)

// CeremonyHandler exposes the award ceremony session endpoints.
type CeremonyHandler struct {
	ceremonies *service.CeremonyService
}

// NewCeremonyHandler constructs CeremonyHandler.
func NewCeremonyHandler(ceremonies *service.CeremonyService) *CeremonyHandler {
	return &CeremonyHandler{ceremonies: ceremonies}
}

// Start godoc
// @Summary Open a reveal session for a completed month
// @Tags Ceremonies
// @Accept json
// @Produce json
// @Param payload body service.StartCeremonyRequest true "Ceremony payload"
// @Success 201 {object} response.Envelope
// @Router /ceremonies [post]
func (h *CeremonyHandler) Start(c *gin.Context) {
	var req service.StartCeremonyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.ceremonies.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get the current ceremony snapshot
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id} [get]
func (h *CeremonyHandler) Get(c *gin.Context) {
	view, err := h.ceremonies.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Advance godoc
// @Summary Reveal the next rank bracket
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id}/advance [post]
func (h *CeremonyHandler) Advance(c *gin.Context) {
	view, err := h.ceremonies.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// RevealWinner godoc
// @Summary Resolve the final showdown
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id}/reveal-winner [post]
func (h *CeremonyHandler) RevealWinner(c *gin.Context) {
	view, err := h.ceremonies.RevealWinner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Skip godoc
// @Summary Fast-forward to the final showdown
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id}/skip [post]
func (h *CeremonyHandler) Skip(c *gin.Context) {
	view, err := h.ceremonies.Skip(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Retry godoc
// @Summary Retry loading after a failed fetch
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id}/retry [post]
func (h *CeremonyHandler) Retry(c *gin.Context) {
	view, err := h.ceremonies.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// End godoc
// @Summary End the ceremony session
// @Tags Ceremonies
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /ceremonies/{id}/end [post]
func (h *CeremonyHandler) End(c *gin.Context) {
	view, err := h.ceremonies.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
