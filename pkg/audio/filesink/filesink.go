// Package filesink implements an [audio.Driver] that writes played audio
// to disk instead of a sound device. The CLI uses it: each spoken item
// lands as a numbered file the user can open with any player, and the
// queue advances as if playback finished instantly.
package filesink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/intervox/intervox/pkg/audio"
)

// Ensure Driver implements the audio.Driver interface.
var _ audio.Driver = (*Driver)(nil)

// Driver writes audio sources to files under a directory. A remote
// reference is recorded as a .url file containing the reference, since
// the sink never fetches.
type Driver struct {
	dir string

	mu  sync.Mutex
	seq int

	events chan audio.Event
}

// New creates a Driver writing into dir. An empty dir means discard:
// sources are accepted and completed without touching the filesystem.
func New(dir string) (*Driver, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("filesink: create %s: %w", dir, err)
		}
	}
	return &Driver{
		dir:    dir,
		events: make(chan audio.Event, 16),
	}, nil
}

// Start implements audio.Driver. The source is written synchronously and
// the Ended event is queued before Start returns.
func (d *Driver) Start(ctx context.Context, src audio.Source) error {
	if src.Empty() {
		return fmt.Errorf("filesink: empty source")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	if d.dir != "" {
		path, err := d.write(seq, src)
		if err != nil {
			return err
		}
		slog.Debug("filesink: wrote audio", "path", path)
	}

	d.events <- audio.Event{Kind: audio.Ended}
	return nil
}

// Events implements audio.Driver.
func (d *Driver) Events() <-chan audio.Event {
	return d.events
}

// Stop implements audio.Driver. Writing completes inside Start, so there
// is never an in-flight playback to abort.
func (d *Driver) Stop() {}

func (d *Driver) write(seq int, src audio.Source) (string, error) {
	if src.URL != "" {
		path := filepath.Join(d.dir, fmt.Sprintf("%03d.url", seq))
		if err := os.WriteFile(path, []byte(src.URL+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("filesink: write %s: %w", path, err)
		}
		return path, nil
	}

	path := filepath.Join(d.dir, fmt.Sprintf("%03d%s", seq, extension(src.MIMEType)))
	if err := os.WriteFile(path, src.Data, 0o644); err != nil {
		return "", fmt.Errorf("filesink: write %s: %w", path, err)
	}
	return path, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
