// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datasets

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the raw dataset directory and cleans new or modified
// tabular files automatically.
//
// # Debouncing
//
// Editors and downloads touch files repeatedly; changes are collected
// into a batch and the pipeline runs once per file after the debounce
// window closes.
//
// # Thread Safety
//
// Safe for concurrent use. Cleaning runs in the single debounce
// goroutine.
type Watcher struct {
	dir      string
	etl      *ETL
	logger   *slog.Logger
	debounce time.Duration
	onClean  func(*CleanResult)

	watcher  *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more changes before cleaning.
	// Default: 500ms.
	Debounce time.Duration

	// OnClean, when set, receives every successful cleaning result.
	OnClean func(*CleanResult)
}

// NewWatcher creates a watcher over the raw dataset directory. Call
// Start to begin watching and Stop to release the underlying watcher.
func NewWatcher(dir string, etl *ETL, logger *slog.Logger, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		opts = &WatcherOptions{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		etl:      etl,
		logger:   logger,
		debounce: debounce,
		onClean:  opts.OnClean,
		watcher:  fsw,
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the goroutines are running;
// they exit when Stop is called or the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("Dataset watcher started", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// wantsFile filters events down to raw tabular files.
func (w *Watcher) wantsFile(path string) bool {
	if !IsTabular(path) {
		return false
	}
	// Cleaned outputs must never be re-cleaned in a loop.
	return !strings.Contains(filepath.Base(path), "_cleaned")
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.wantsFile(event.Name) {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
				// Buffer full; the debouncer will pick the file up on
				// its next write event.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Dataset watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) > 0 && ctx.Err() == nil {
			for path := range pending {
				w.cleanOne(ctx, path)
			}
			pending = make(map[string]struct{})
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.changes:
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

func (w *Watcher) cleanOne(ctx context.Context, path string) {
	result, err := w.etl.CleanFile(ctx, path)
	if err != nil {
		w.logger.Warn("Auto-clean failed", "file", filepath.Base(path), "error", err)
		return
	}
	if result.Skipped {
		return
	}
	w.logger.Info("Auto-cleaned dataset",
		"file", filepath.Base(path),
		"output", filepath.Base(result.Output),
	)
	if w.onClean != nil {
		w.onClean(result)
	}
}
