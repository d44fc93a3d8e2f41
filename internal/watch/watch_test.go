// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNaturalLess(t *testing.T) {
	names := []string{
		"frame10.png",
		"FRAME10.png",
		"Frame3.png",
		"frame2.png",
		"frame1.png",
		"a.png",
		"frame.png",
		"10.png",
		"9.png",
	}
	got := slices.Clone(names)
	slices.SortStableFunc(got, func(a, b string) int {
		switch {
		case NaturalLess(a, b):
			return -1
		case NaturalLess(b, a):
			return 1
		default:
			return 0
		}
	})
	want := []string{
		"9.png",
		"10.png",
		"a.png",
		"frame.png",
		"frame1.png",
		"frame2.png",
		"Frame3.png",
		"FRAME10.png",
		"frame10.png",
	}
	if !cmp.Equal(want, got) {
		t.Errorf("unexpected order:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestIsFrame(t *testing.T) {
	for _, test := range []struct {
		name string
		want bool
	}{
		{name: "a.png", want: true},
		{name: "a.JPG", want: true},
		{name: "dir/b.webp", want: true},
		{name: "notes.txt", want: false},
		{name: "png", want: false},
		{name: "a.png.swp", want: false},
	} {
		if got := IsFrame(test.name); got != test.want {
			t.Errorf("unexpected result for %q: got:%t want:%t", test.name, got, test.want)
		}
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "f2.png", "two")
	write(t, dir, "f10.png", "ten")
	write(t, dir, "notes.txt", "ignored")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Change, 10)
	w, err := NewWatcher(ctx, dir, changes, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()

	frames := func(names ...string) []string {
		paths := make([]string, len(names))
		for i, n := range names {
			paths[i] = filepath.Join(dir, n)
		}
		return paths
	}

	c := next(t, changes)
	if want := frames("f2.png", "f10.png"); !cmp.Equal(want, c.Frames) {
		t.Errorf("unexpected initial frames:\n--- want:\n+++ got:\n%s", cmp.Diff(want, c.Frames))
	}

	write(t, dir, "f1.png", "one")
	c = next(t, changes)
	if want := frames("f1.png", "f2.png", "f10.png"); !cmp.Equal(want, c.Frames) {
		t.Errorf("unexpected frames after create:\n--- want:\n+++ got:\n%s", cmp.Diff(want, c.Frames))
	}

	// Rewriting identical content is not a change.
	write(t, dir, "f2.png", "two")
	write(t, dir, "notes.txt", "still ignored")
	select {
	case c := <-changes:
		t.Errorf("unexpected change for unchanged content: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}

	err = os.Remove(filepath.Join(dir, "f10.png"))
	if err != nil {
		t.Fatalf("unexpected error removing frame: %v", err)
	}
	c = next(t, changes)
	if want := frames("f1.png", "f2.png"); !cmp.Equal(want, c.Frames) {
		t.Errorf("unexpected frames after remove:\n--- want:\n+++ got:\n%s", cmp.Diff(want, c.Frames))
	}
}

func TestWatcherCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	changes := make(chan Change, 1)
	w, err := NewWatcher(context.Background(), dir, changes, -1, nil)
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()
	fi, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected directory to be created: %v", err)
	}
	if !fi.IsDir() {
		t.Errorf("expected %s to be a directory", dir)
	}
}

func write(t *testing.T, dir, name, data string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing %s: %v", name, err)
	}
}

func next(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		if c.Err != nil {
			t.Fatalf("unexpected change error: %v", c.Err)
		}
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	panic("unreachable")
}
