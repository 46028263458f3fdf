package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwmi/leaf-dss/internal/config"
	"github.com/iwmi/leaf-dss/internal/fixture"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestBuildHandler_ServesBlocks(t *testing.T) {
	withConfig(t, &config.Config{Data: fixture.Write(t, fixture.Options{})})

	handler, err := buildHandler(newCache())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/blocks", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Features, 3)
}

func TestBuildHandler_DisplayOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "display.yaml")
	fixture.WriteFile(t, path, "display:\n  colors:\n    primary: \"#000000\"\n")

	withConfig(t, &config.Config{
		Data:    fixture.Write(t, fixture.Options{}),
		Display: config.DisplayConfig{Path: path},
	})

	handler, err := buildHandler(newCache())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Colors map[string]string `json:"colors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "#000000", body.Colors["primary"])
}

func TestBuildHandler_BadDisplayPath(t *testing.T) {
	withConfig(t, &config.Config{
		Data:    fixture.Write(t, fixture.Options{}),
		Display: config.DisplayConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")},
	})

	_, err := buildHandler(newCache())
	assert.Error(t, err)
}
