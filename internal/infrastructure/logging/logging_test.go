package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ringminter/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestNewNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	buyer := Named(logger, domain.CategoryBuyer)
	buyer.Info("hidden")
	buyer.Warn("TXN with hash: 0xabc")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "logger=buyer")
	require.Contains(t, out, "TXN with hash: 0xabc")
}

func TestNamedWithoutLogger(t *testing.T) {
	Named(nil, domain.CategoryRingMinter).Info("dropped")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ringminter.log")
	var buf bytes.Buffer
	logger, closer, err := New(Config{File: path, Output: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, buf.String(), "hello")
}

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for range 4 {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		require.NoError(t, err, name)
		require.Equal(t, int64(len(chunk)), info.Size(), name)
	}
	_, err = os.Stat(path + ".3")
	require.True(t, os.IsNotExist(err))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("Debug").String())
	require.Equal(t, "WARN", parseLevel("warning").String())
	require.Equal(t, "INFO", parseLevel("").String())
}
