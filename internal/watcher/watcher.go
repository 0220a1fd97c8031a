package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/logger"
)

var log = logger.For("watcher")

// textExt is the extension of OCR output files.
const textExt = ".txt"

// DefaultSettle is how long a file must go without writes before it is read.
const DefaultSettle = 500 * time.Millisecond

// imageExts are checked in order for a sibling image.
var imageExts = []string{".png", ".jpg", ".jpeg", ".webp", ".heic"}

// Capture is one OCR result found in the inbox.
type Capture struct {
	TextPath        string
	Text            string
	SourceLocator   string
	SourceReference string
}

// submitted is what the inbox last produced for a path.
type submitted struct {
	id   string
	text string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period after the last write to a file.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// Watcher feeds inbox captures to an ingestion service. A file is read once
// its writes have settled; if its text changes later, the new text replaces
// the document submitted before.
type Watcher struct {
	dir    string
	ingest driving.IngestionService
	settle time.Duration

	mu   sync.Mutex
	seen map[string]submitted
}

// New creates a watcher for dir.
func New(dir string, ingest driving.IngestionService, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    dir,
		ingest: ingest,
		settle: DefaultSettle,
		seen:   make(map[string]submitted),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Scan submits captures already present in the inbox and returns how many
// were submitted. Files whose text is unchanged since the last submission
// are skipped.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("reading inbox: %w", err)
	}

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if e.IsDir() {
			continue
		}
		c, ok := w.capture(filepath.Join(w.dir, e.Name()))
		if !ok {
			continue
		}
		if err := w.submit(ctx, c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Run watches the inbox until ctx is done. Every create or write restarts
// the file's settle timer; the file is read when the timer fires.
// Submission errors are logged and the file is retried on its next write.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	log.Info("watching %s", w.dir)

	timers := make(map[string]*time.Timer)
	settled := make(chan string)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error: %v", err)
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path, found := w.candidate(event)
			if !found {
				continue
			}
			if t, armed := timers[path]; armed && t.Stop() {
				t.Reset(w.settle)
				continue
			}
			timers[path] = time.AfterFunc(w.settle, func() {
				select {
				case settled <- path:
				case <-ctx.Done():
				}
			})
		case path := <-settled:
			delete(timers, path)
			c, ok := w.capture(path)
			if !ok {
				continue
			}
			if err := w.submit(ctx, c); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrClosed) {
					return nil
				}
				log.Error("submitting %s: %v", c.TextPath, err)
			}
		}
	}
}

// candidate reports whether event is a create or write of a visible text file.
func (w *Watcher) candidate(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !isTextFile(filepath.Base(event.Name)) {
		return "", false
	}
	return event.Name, true
}

// capture reads path. It reports false for blank files and for text that
// matches what was last submitted for path.
func (w *Watcher) capture(path string) (Capture, bool) {
	name := filepath.Base(path)
	if !isTextFile(name) {
		return Capture{}, false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Capture{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("reading %s: %v", path, err)
		return Capture{}, false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Capture{}, false
	}

	w.mu.Lock()
	prev, done := w.seen[path]
	w.mu.Unlock()
	if done && prev.text == text {
		return Capture{}, false
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return Capture{
		TextPath:        path,
		Text:            text,
		SourceLocator:   locate(filepath.Dir(path), stem, path),
		SourceReference: stem,
	}, true
}

// submit stores c and deletes the document an earlier version of the same
// file produced.
func (w *Watcher) submit(ctx context.Context, c Capture) error {
	id, err := w.ingest.Submit(ctx, c.Text, c.SourceLocator, c.SourceReference)
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev, replaced := w.seen[c.TextPath]
	w.seen[c.TextPath] = submitted{id: id, text: c.Text}
	w.mu.Unlock()

	if replaced {
		if err := w.ingest.Delete(ctx, prev.id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn("removing earlier version of %s: %v", c.TextPath, err)
		}
		log.Debug("replaced %s: %s -> %s", c.TextPath, prev.id, id)
		return nil
	}
	log.Debug("submitted %s as %s", c.TextPath, id)
	return nil
}

// locate returns the sibling image for stem, or fallback when there is none.
func locate(dir, stem, fallback string) string {
	for _, ext := range imageExts {
		for _, candidate := range []string{stem + ext, stem + strings.ToUpper(ext)} {
			p := filepath.Join(dir, candidate)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p
			}
		}
	}
	return fallback
}

func isTextFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), textExt)
}
