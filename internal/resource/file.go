// SPDX-License-Identifier: MIT

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileSource probes and fetches resources from the local filesystem.
type FileSource struct {
	logger zerolog.Logger
}

// NewFileSource creates a filesystem-backed source.
func NewFileSource(logger zerolog.Logger) *FileSource {
	return &FileSource{logger: logger}
}

// Probe stats the file; the marker combines mtime and size so truncation
// followed by a same-length rewrite within mtime resolution still registers.
func (s *FileSource) Probe(ctx context.Context, ref string) (string, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", ref, err)
	}
	return fmt.Sprintf("%d|%d", info.ModTime().UnixNano(), info.Size()), nil
}

// Fetch reads the file and merges a sidecar JSON document when hinted.
func (s *FileSource) Fetch(ctx context.Context, ref string, opts FetchOptions) (*Payload, error) {
	body, err := os.ReadFile(ref) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}

	payload := &Payload{
		Body: body,
		Attrs: map[string]string{
			"size":     strconv.FormatInt(info.Size(), 10),
			"modified": info.ModTime().UTC().Format("2006-01-02 15:04:05"),
			"name":     filepath.Base(ref),
		},
	}

	if opts.Hint != "" {
		sidecarPath := opts.Hint
		if !filepath.IsAbs(sidecarPath) {
			sidecarPath = filepath.Join(filepath.Dir(ref), sidecarPath)
		}
		if raw, err := os.ReadFile(sidecarPath); err == nil { // #nosec G304
			var sidecar map[string]string
			if err := json.Unmarshal(raw, &sidecar); err == nil {
				for k, v := range sidecar {
					payload.Attrs[k] = v
				}
			}
		}
	}
	return payload, nil
}

// Watch observes ref for writes and invokes onChange for each one until ctx
// is cancelled. It lets the scheduler pull the next check forward instead of
// waiting out the full poll period.
func (s *FileSource) Watch(ctx context.Context, ref string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}

	// Watch the parent directory so replace-by-rename is observed too.
	dir := filepath.Dir(ref)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	target := filepath.Base(ref)
	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Str("event", "watch.error").Str("path", ref).Msg("fsnotify watcher error")
			}
		}
	}()
	return nil
}
