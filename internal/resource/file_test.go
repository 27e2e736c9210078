// SPDX-License-Identifier: MIT

package resource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFileSource_ProbeMarkerChangesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	src := NewFileSource(testLogger())
	m1, err := src.Probe(context.Background(), path)
	require.NoError(t, err)

	// Content and size change; mtime may or may not tick depending on fs resolution.
	require.NoError(t, os.WriteFile(path, []byte("other-content"), 0o644))
	m2, err := src.Probe(context.Background(), path)
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)
}

func TestFileSource_ProbeMissingFile(t *testing.T) {
	src := NewFileSource(testLogger())
	_, err := src.Probe(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.Error(t, err)
}

func TestFileSource_FetchAttrs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))

	payload, err := NewFileSource(testLogger()).Fetch(context.Background(), path, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), payload.Body)
	assert.Equal(t, "4", payload.Attrs["size"])
	assert.Equal(t, "img.png", payload.Attrs["name"])
	assert.NotEmpty(t, payload.Attrs["modified"])
}

func TestFileSource_FetchSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.json"), []byte(`{"tag":"v"}`), 0o644))

	payload, err := NewFileSource(testLogger()).Fetch(context.Background(), path, FetchOptions{Hint: "img.json"})
	require.NoError(t, err)
	assert.Equal(t, "v", payload.Attrs["tag"])
}

func TestFileSource_WatchSignalsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	src := NewFileSource(testLogger())
	require.NoError(t, src.Watch(ctx, path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification after write")
	}
}
