package api

import (
	"net/http"
	"testing"

	"whatsapp-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.ensureSetting(t, "ai_assistant_active", "true")
	s.ensureSetting(t, "assistant_name", "Maximus")

	w := s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Setting](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/settings/assistant_name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maximus", decode[models.Setting](t, w).Value)

	w = s.do(t, http.MethodPut, "/api/settings/ai_assistant_active", map[string]any{"value": "false"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "false", decode[models.Setting](t, w).Value)

	w = s.do(t, http.MethodGet, "/api/settings/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/settings/missing", map[string]any{"value": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "x", decode[models.Setting](t, w).Value)

	w = s.do(t, http.MethodGet, "/api/settings/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "x", decode[models.Setting](t, w).Value)

	w = s.do(t, http.MethodPut, "/api/settings/missing", map[string]any{"value": "y"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "y", decode[models.Setting](t, w).Value)

	w = s.do(t, http.MethodPut, "/api/settings/assistant_name", map[string]any{"value": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/settings/assistant_name", map[string]any{"value": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode[models.Setting](t, w).Value)
}
