// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package palette builds a single color palette shared by every frame of
// an animation.
//
// Quantizing each frame against its own palette makes colors flicker
// between frames, so the palette is learned from a sample of frames taken
// across the whole sequence.
package palette

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"golang.org/x/image/draw"

	"github.com/kortschak/framegif/internal/slogext"
)

// Method is the name of a quantization method.
type Method string

const (
	Adaptive  Method = "adaptive"
	Octree    Method = "octree"
	MedianCut Method = "mediancut"

	// Default is the engine default used when all requested
	// methods have failed.
	Default Method = "default"
)

// DefaultMethods is the fallback chain used when a Spec has no methods.
var DefaultMethods = []Method{Adaptive, Octree, MedianCut}

// DefaultSamples is the number of frames sampled to build a palette.
const DefaultSamples = 12

// ParseMethods parses a comma-separated list of methods.
func ParseMethods(s string) ([]Method, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var m []Method
	for _, f := range strings.Split(s, ",") {
		switch f := Method(strings.ToLower(strings.TrimSpace(f))); f {
		case Adaptive, Octree, MedianCut, Default:
			m = append(m, f)
		default:
			return nil, fmt.Errorf("unknown quantization method: %q", f)
		}
	}
	return m, nil
}

// Spec specifies how a palette is built.
type Spec struct {
	// Colors is the maximum number of colors in the palette.
	// It is clamped to [2,256].
	Colors int

	// Methods is the ordered list of quantization methods to
	// try. If Methods is empty, DefaultMethods is used.
	Methods []Method

	// Samples is the maximum number of frames used to learn
	// the palette. If Samples is zero DefaultSamples is used.
	Samples int
}

// Clamp returns the spec's color count clamped to [2,256].
func (s Spec) Clamp() int {
	return min(max(s.Colors, 2), 256)
}

// ErrUnavailable is returned by a Strategy that cannot run.
var ErrUnavailable = errors.New("quantization method unavailable")

// Strategy is a color quantization method.
type Strategy interface {
	// Method returns the name of the strategy.
	Method() Method
	// Palette returns a palette of at most n colors
	// representative of img.
	Palette(img image.Image, n int) (color.Palette, error)
}

// Strategies returns the built-in strategies keyed by method.
func Strategies() map[Method]Strategy {
	return map[Method]Strategy{
		Adaptive:  adaptive{},
		Octree:    octree{},
		MedianCut: medianCut{},
		Default:   engineDefault{},
	}
}

// BuildError is returned when no palette could be built. It holds the
// errors returned by each of the attempted methods.
type BuildError struct {
	Causes []error
}

func (e *BuildError) Error() string {
	if len(e.Causes) == 0 {
		return "cannot build palette"
	}
	return fmt.Sprintf("cannot build palette: %v", errors.Join(e.Causes...))
}

func (e *BuildError) Unwrap() []error { return e.Causes }

// Builder builds palettes from frame sequences.
type Builder struct {
	// Strategies holds the available quantization strategies.
	// If Strategies is nil, the built-in strategies are used.
	Strategies map[Method]Strategy

	Log *slog.Logger
}

// NewBuilder returns a Builder using the built-in strategies.
func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{Strategies: Strategies(), Log: log}
}

// Build returns a palette learned from a sample of frames. The methods of
// spec are tried in order, followed by the engine default. The first
// method to succeed provides the palette. If every method fails, Build
// returns a *BuildError holding each failure.
func (b *Builder) Build(frames []image.Image, spec Spec) (color.Palette, error) {
	if len(frames) == 0 {
		return nil, &BuildError{Causes: []error{errors.New("no frames")}}
	}
	n := spec.Clamp()
	samples := spec.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}
	picks := Sample(len(frames), samples)
	sampled := make([]image.Image, len(picks))
	for i, p := range picks {
		sampled[i] = frames[p]
	}
	img, err := Stack(sampled)
	if err != nil {
		return nil, &BuildError{Causes: []error{err}}
	}

	strategies := b.Strategies
	if strategies == nil {
		strategies = Strategies()
	}
	methods := spec.Methods
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	if methods[len(methods)-1] != Default {
		methods = append(methods[:len(methods):len(methods)], Default)
	}

	ctx := context.Background()
	var causes []error
	for _, m := range methods {
		s, ok := strategies[m]
		if !ok {
			causes = append(causes, fmt.Errorf("%s: %w", m, ErrUnavailable))
			b.log().LogAttrs(ctx, slog.LevelDebug, "skip method", slog.String("method", string(m)))
			continue
		}
		pal, err := s.Palette(img, n)
		if err == nil && len(pal) == 0 {
			err = errors.New("empty palette")
		}
		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", m, err))
			b.log().LogAttrs(ctx, slog.LevelWarn, "quantization method failed", slog.String("method", string(m)), slog.Any("error", err))
			continue
		}
		pal = finish(pal, n)
		b.log().LogAttrs(ctx, slog.LevelDebug, "built palette",
			slog.String("method", string(m)),
			slog.Int("colors", len(pal)),
			slog.Int("frames", len(frames)),
			slog.Any("samples", picks),
			slog.Any("palette", slogext.Palette(pal)),
		)
		return pal, nil
	}
	return nil, &BuildError{Causes: causes}
}

func (b *Builder) log() *slog.Logger {
	if b.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Log
}

// Sample returns the indices of at most count frames evenly spaced
// across a sequence of n frames.
func Sample(n, count int) []int {
	if n <= 0 {
		return nil
	}
	if count <= 0 || n <= count {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	step := max(1, n/count)
	idx := make([]int, 0, count)
	for i := 0; i < n && len(idx) < count; i += step {
		idx = append(idx, i)
	}
	return idx
}

// Stack returns the images concatenated vertically. All the images must
// have the same width.
func Stack(imgs []image.Image) (*image.RGBA, error) {
	if len(imgs) == 0 {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	w := imgs[0].Bounds().Dx()
	var h int
	for i, img := range imgs {
		if dx := img.Bounds().Dx(); dx != w {
			return nil, fmt.Errorf("image %d width %d does not match width %d", i, dx, w)
		}
		h += img.Bounds().Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var y int
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(dst, image.Rect(0, y, w, y+b.Dy()), img, b.Min, draw.Src)
		y += b.Dy()
	}
	return dst, nil
}

// finish returns pal with opaque, distinct entries. The result has at
// least two and at most n entries.
func finish(pal color.Palette, n int) color.Palette {
	seen := make(map[color.RGBA]bool)
	out := make(color.Palette, 0, n)
	for _, c := range pal {
		r, g, b, _ := c.RGBA()
		rgba := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}
		if seen[rgba] {
			continue
		}
		seen[rgba] = true
		out = append(out, rgba)
		if len(out) == n {
			break
		}
	}
	for _, c := range []color.RGBA{{A: 0xff}, {R: 0xff, G: 0xff, B: 0xff, A: 0xff}} {
		if len(out) >= 2 {
			break
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
