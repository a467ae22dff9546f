package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/starboard-api/internal/middleware"
	"github.com/noah-isme/starboard-api/internal/models"
)

func TestAwardHandlerRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAwardHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/awards", bytes.NewReader([]byte("{")))

	handler.Award(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAwardHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAwardHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/awards", bytes.NewReader([]byte(`{"student_id":"s1","stars":2}`)))

	handler.Award(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUserReadsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	claims := currentUser(c)
	assert.NotNil(t, claims)
	assert.Equal(t, "t1", claims.UserID)
}
