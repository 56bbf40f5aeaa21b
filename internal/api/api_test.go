package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/directory"
	"whatsapp-assistant/internal/encryption"
	"whatsapp-assistant/internal/menu"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	store  *database.Store
	cipher *encryption.Cipher
}

func newTestServer(t *testing.T, sender OperatorSender, processor MessageProcessor) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := database.NewStore(db)
	cipher, err := encryption.New("test secret")
	require.NoError(t, err)

	r := gin.New()
	rg := r.Group("/api")
	NewContactHandler(directory.New(store, nil)).Register(rg)
	NewMessageHandler(store, cipher, sender).Register(rg)
	NewMenuHandler(menu.NewCatalog(store)).Register(rg)
	NewSettingsHandler(settings.New(store)).Register(rg)
	NewSimulateHandler(processor).Register(rg)

	return &testServer{router: r, store: store, cipher: cipher}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) contact(t *testing.T, phone string) *models.Contact {
	t.Helper()
	c := &models.Contact{PhoneNumber: phone, Name: phone}
	require.NoError(t, s.store.CreateContact(context.Background(), c))
	return c
}

func (s *testServer) ensureSetting(t *testing.T, key, value string) {
	t.Helper()
	_, err := s.store.UpsertSetting(context.Background(), key, value, "")
	require.NoError(t, err)
}

