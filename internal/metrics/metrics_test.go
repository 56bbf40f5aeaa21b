package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	MessagesProcessed.WithLabelValues(OutcomeMenu).Inc()

	r := gin.New()
	r.GET("/metrics", Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `assistant_messages_processed_total{outcome="menu"}`)
	assert.Contains(t, w.Body.String(), "assistant_socket_clients")
}
