package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/lint"
)

// ReloadFunc receives the freshly loaded document and its validation
// result after every change to the watched file.
type ReloadFunc func(doc *servicegraph.Document, issues []lint.Issue)

// Watcher reloads and revalidates a catalog file whenever it changes on
// disk.
type Watcher struct {
	path    string
	opts    lint.Options
	onLoad  ReloadFunc
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches one catalog file. The parent directory is watched so
// editors that replace the file atomically still trigger a reload.
func NewWatcher(path string, opts lint.Options, onLoad ReloadFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:    path,
		opts:    opts,
		onLoad:  onLoad,
		logger:  logger,
		watcher: fsWatcher,
	}, nil
}

// Run loads the file once, then blocks reloading on every change until
// the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.reload()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("catalog file changed", zap.String("path", w.path), zap.String("op", event.Op.String()))
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("reading catalog file", zap.String("path", w.path), zap.Error(err))
		return
	}

	doc, err := LoadDocument(data)
	if err != nil {
		w.logger.Warn("loading catalog file", zap.String("path", w.path), zap.Error(err))
		return
	}

	issues := lint.ValidateDocument(doc, w.opts)
	w.logger.Info("catalog reloaded",
		zap.String("path", w.path),
		zap.Int("tags", len(doc.Filters)),
		zap.Int("fields", len(doc.Fields)),
		zap.Int("issues", len(issues)),
	)
	if w.onLoad != nil {
		w.onLoad(doc, issues)
	}
}
