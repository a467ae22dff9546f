package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStandingsHandlerClassesRequiresLeague(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStandingsHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/standings/classes", nil)

	handler.Classes(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStandingsHandlerStudentsRejectsBadMetric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStandingsHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/standings/students?classId=c1&metric=vibes", nil)

	handler.Students(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStandingsHandlerHistoryRequiresMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStandingsHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/standings/classes/history?league=lower", nil)

	handler.ClassHistory(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
