package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, New("debug", "json").GetLevel())
	require.Equal(t, logrus.InfoLevel, New("nonsense", "json").GetLevel())
	_, ok := New("info", "text").Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json")
	logger.SetOutput(&buf)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/requests/x", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, float64(http.StatusNotFound), entry["status"])
	require.Equal(t, "/api/v1/requests/x", entry["path"])
	require.Equal(t, "warning", entry["level"])
}
