package logging_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/logging"
)

func TestRotatingFileWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := logging.NewRotatingFileWriter(path, 10, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dddddddd\n", string(current))

	first, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "cccccccc\n", string(first))

	second, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb\n", string(second))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingFileWriterRejectsBadArgs(t *testing.T) {
	_, err := logging.NewRotatingFileWriter("", 10, 1)
	assert.Error(t, err)
	_, err = logging.NewRotatingFileWriter(filepath.Join(t.TempDir(), "x.log"), 0, 1)
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, closer, err := logging.New(logging.Options{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug().Str("k", "v").Msg("hello")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "v", entry["k"])
	assert.Equal(t, "accountforge", entry["service"])
}

func TestRequestFormatterLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&logging.RequestFormatter{Logger: logger}))
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"status":404`), out)
	assert.True(t, strings.Contains(out, `"level":"warn"`), out)
	assert.True(t, strings.Contains(out, `"path":"/missing"`), out)
	assert.True(t, strings.Contains(out, `"request_id":"`), out)
}

func TestRotateOnDemand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := logging.NewRotatingFileWriter(path, 1024, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.Write([]byte("before\n"))
	require.NoError(t, err)
	require.NoError(t, w.Rotate())
	_, err = w.Write([]byte("after\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(current))

	require.NoError(t, w.Close())
	_, err = w.Write([]byte("closed"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
