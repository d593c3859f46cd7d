package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.pdf"), "pdf-1")
	write(t, filepath.Join(root, "sub", "b.JPG"), "jpg-1")
	write(t, filepath.Join(root, "sub", "copy.png"), "pdf-1")
	write(t, filepath.Join(root, "notes.txt"), "skip me")
	write(t, filepath.Join(root, ".hidden", "c.png"), "png-hidden")
	write(t, filepath.Join(root, ".d.png"), "png-dot")

	tests := []struct {
		name       string
		skipHidden bool
		dedupe     bool
		wantPaths  int
		wantDedup  uint32
		wantMatch  uint32
	}{
		{"all files, duplicates marked", false, false, 5, 1, 5},
		{"skip hidden", true, false, 3, 1, 3},
		{"skip hidden and drop duplicates", true, true, 2, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, stats, err := NewScanner(tt.skipHidden, tt.dedupe, nil).Discover(context.Background(), root)
			require.NoError(t, err)
			assert.Len(t, docs, tt.wantPaths)
			assert.Equal(t, tt.wantMatch, stats.Matched)
			assert.Equal(t, tt.wantDedup, stats.Deduplicated)
			assert.Zero(t, stats.Failed)
		})
	}

	docs, _, err := NewScanner(true, false, nil).Discover(context.Background(), root)
	require.NoError(t, err)
	byName := map[string]Document{}
	for _, d := range docs {
		byName[filepath.Base(d.Path)] = d
	}
	assert.Equal(t, constants.MimeJPEG, byName["b.JPG"].MimeType)
	assert.Equal(t, constants.MimePDF, byName["a.pdf"].MimeType)
	assert.Equal(t, byName["a.pdf"].Path, byName["copy.png"].DuplicateOf)
	assert.Equal(t, byName["a.pdf"].HashHex, byName["copy.png"].HashHex)
	assert.EqualValues(t, 5, byName["a.pdf"].Size)
	assert.True(t, filepath.IsAbs(byName["a.pdf"].Path))
}

func TestDiscover_Errors(t *testing.T) {
	_, _, err := NewScanner(false, false, nil).Discover(context.Background(), " ")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := t.TempDir()
	write(t, filepath.Join(root, "a.pdf"), "x")
	_, _, err = NewScanner(false, false, nil).Discover(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect_RejectsUnsupported(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "pass.heic")
	write(t, p, "x")
	_, err := NewScanner(false, false, nil).Inspect(p)
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.True(t, AllowedExt(".JPEG"))
	assert.False(t, AllowedExt("gif"))
}

func TestStartWatcher(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	write(t, filepath.Join(root, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	events, errs, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, "existing.pdf", filepath.Base(next()))

	write(t, filepath.Join(root, "ignored.txt"), "x")
	write(t, filepath.Join(root, "new.png"), "x")
	assert.Equal(t, "new.png", filepath.Base(next()))

	cancel()
	for range events {
	}
	for range errs {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
