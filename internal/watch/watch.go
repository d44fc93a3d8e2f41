// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package watch provides a directory watcher that reports changes to the
// set of animation frame images held in the directory.
package watch

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kortschak/framegif/internal/slogext"
)

// FileDebounce is the default duration to wait after the last event in
// a burst before the directory is examined.
const FileDebounce = 100 * time.Millisecond

// Extensions is the set of file extensions treated as frame images.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// IsFrame returns whether name has a frame image extension.
func IsFrame(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Frames returns the paths of the frame images in dir in natural order.
func Frames(dir string) ([]string, error) {
	de, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range de {
		if e.IsDir() || !IsFrame(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.SortFunc(paths, func(a, b string) int {
		switch {
		case NaturalLess(a, b):
			return -1
		case NaturalLess(b, a):
			return 1
		default:
			return 0
		}
	})
	return paths, nil
}

// Sum is a frame file content hash.
type Sum [sha1.Size]byte

func (s Sum) String() string { return fmt.Sprintf("%x", s[:]) }

// Change is a settled change to the frames held in a watched directory.
type Change struct {
	// Event holds the events that make up the change.
	Event []fsnotify.Event
	// Frames is the list of frame paths in the directory
	// after the change, in natural order.
	Frames []string
	Err    error
}

// Op returns an aggregated fsnotify.Op for all elements of the receiver's
// Event field.
func (c Change) Op() fsnotify.Op {
	var op fsnotify.Op
	for _, e := range c.Event {
		op |= e.Op
	}
	return op
}

// Watcher collects raw fsnotify.Events for a directory and reports bursts
// of events that alter the directory's frames.
type Watcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	hashes   map[string]Sum
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher starts watching dir, sending changes on the changes channel.
// If dir does not exist it is created, and if dir is deleted while being
// watched it is recreated. The initial contents of dir are reported as a
// change if any frames are present. The debounce parameter specifies how
// long to wait after the last event in a burst before the directory is
// examined. If it is less than zero, FileDebounce is used.
func NewWatcher(ctx context.Context, dir string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	_, err := os.Stat(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		err = os.Mkdir(dir, 0o755)
		if err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(dir)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	if debounce < 0 {
		debounce = FileDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		hashes:   make(map[string]Sum),
		log:      log.With(slog.String("component", "watch")),
		done:     make(chan struct{}),
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		defer close(w.done)
		w.init(ctx)
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to return.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// init sends the initial set of frames in the directory.
func (w *Watcher) init(ctx context.Context) {
	frames, err := Frames(w.dir)
	if err != nil {
		w.send(ctx, Change{Err: err})
		return
	}
	if len(frames) == 0 {
		return
	}
	events := make([]fsnotify.Event, 0, len(frames))
	for _, path := range frames {
		sum, err := hashFile(path)
		if err != nil {
			w.log.LogAttrs(ctx, slog.LevelWarn, "hash file", slog.String("path", path), slog.Any("error", err))
		} else {
			w.hashes[path] = sum
		}
		events = append(events, fsnotify.Event{Name: path, Op: fsnotify.Create})
	}
	w.send(ctx, Change{Event: events, Frames: frames})
}

// process aggregates fsnotify.Events into debounced bursts and reports
// bursts that change the frames in the directory.
func (w *Watcher) process(ctx context.Context) {
	var pending []fsnotify.Event
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == w.dir && ev.Has(fsnotify.Remove) {
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove frame directory", slog.String("name", ev.Name))
				clear(w.hashes)
				pending = nil
				timer.Stop()
				if !w.send(ctx, Change{Event: []fsnotify.Event{ev}}) {
					return
				}
				w.replace(ctx)
				continue
			}
			if !IsFrame(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			w.log.LogAttrs(ctx, slog.LevelDebug, "event", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
			pending = append(pending, ev)
			timer.Reset(w.debounce)
		case <-timer.C:
			c, ok := w.settle(ctx, pending)
			pending = nil
			if ok && !w.send(ctx, c) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !w.send(ctx, Change{Err: err}) {
				return
			}
		}
	}
}

// settle examines the directory after a burst of events, returning
// the change and whether the burst altered any frame.
func (w *Watcher) settle(ctx context.Context, events []fsnotify.Event) (Change, bool) {
	var changed bool
	for _, ev := range events {
		switch {
		case ev.Has(fsnotify.Write | fsnotify.Create):
			sum, err := hashFile(ev.Name)
			if err != nil {
				// Replaced or removed within the burst.
				w.log.LogAttrs(ctx, slog.LevelDebug, "hash file", slog.String("path", ev.Name), slog.Any("error", err))
				delete(w.hashes, ev.Name)
				changed = true
				continue
			}
			if prev, ok := w.hashes[ev.Name]; ok && prev == sum {
				w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.String("path", ev.Name), slog.Any("sum", slogext.Stringer{Stringer: sum}))
				continue
			}
			w.hashes[ev.Name] = sum
			changed = true
		case ev.Has(fsnotify.Remove | fsnotify.Rename):
			delete(w.hashes, ev.Name)
			changed = true
		}
	}
	if !changed {
		return Change{}, false
	}
	frames, err := Frames(w.dir)
	return Change{Event: events, Frames: frames, Err: err}, true
}

// replace recreates and rewatches a removed directory.
func (w *Watcher) replace(ctx context.Context) {
	err := os.Mkdir(w.dir, 0o755)
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "replace frame dir", slog.String("path", w.dir), slog.Any("error", err))
		return
	}
	err = w.watcher.Add(w.dir)
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "replace watch", slog.Any("error", err))
	}
}

// send sends c on the changes channel unless ctx is cancelled first.
func (w *Watcher) send(ctx context.Context, c Change) bool {
	select {
	case w.changes <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func hashFile(path string) (Sum, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Sum{}, err
	}
	if fi.IsDir() {
		return Sum{}, fmt.Errorf("%s is a directory", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Sum{}, err
	}
	return sha1.Sum(b), nil
}
