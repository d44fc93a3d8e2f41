// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encode

import (
	"fmt"
	"image/color"
	"slices"
	"time"

	"github.com/kortschak/framegif/internal/filter"
	"github.com/kortschak/framegif/internal/palette"
	"github.com/kortschak/framegif/internal/quantize"
)

// ConfigError is returned for an invalid encoding configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ImageConfig is the configuration for encoding a sequence of still
// images.
type ImageConfig struct {
	// Delay is the time each frame is shown.
	Delay time.Duration

	// LoopForever specifies that the animation repeats
	// indefinitely. Otherwise it plays once.
	LoopForever bool

	// UnifyCanvas centers every frame on a canvas of the
	// largest width and height in the sequence.
	UnifyCanvas bool

	// PadSquare centers every frame on a square canvas.
	PadSquare bool

	// Background is the color transparency is flattened
	// onto and canvases are filled with. Nil is white.
	Background color.Color

	// MaxWidth is the maximum frame width. Zero leaves
	// frames at their decoded size.
	MaxWidth int

	Palette palette.Spec
	Dither  quantize.Dither
}

// Validate returns a *ConfigError if the configuration is invalid.
func (c ImageConfig) Validate() error {
	switch {
	case c.Delay < 0:
		return &ConfigError{Field: "delay", Reason: fmt.Sprintf("negative delay: %v", c.Delay)}
	case c.MaxWidth < 0:
		return &ConfigError{Field: "width", Reason: fmt.Sprintf("negative width: %d", c.MaxWidth)}
	case !validDither(c.Dither):
		return &ConfigError{Field: "dither", Reason: fmt.Sprintf("unknown mode: %v", c.Dither)}
	case c.Palette.Samples < 0:
		return &ConfigError{Field: "samples", Reason: fmt.Sprintf("negative sample count: %d", c.Palette.Samples)}
	}
	return nil
}

// ValidColors is the set of palette sizes accepted for video encoding.
var ValidColors = []int{64, 96, 128, 160, 192, 256}

// MaxBayerScale is the largest accepted bayer pattern scale.
const MaxBayerScale = 5

// Clip is a window of a video in seconds. An End of zero runs the
// window to the end of the source.
type Clip struct {
	Start, End float64
}

// VideoConfig is the configuration for encoding a video.
type VideoConfig struct {
	// FPS is the output frame rate in [1,60].
	FPS int

	// Width is the output width. Zero retains the
	// source width.
	Width int

	// Colors is the palette size. It must be one
	// of ValidColors.
	Colors int

	Dither quantize.Dither

	// BayerScale is the ordered dithering pattern scale
	// in [0,MaxBayerScale].
	BayerScale int

	LoopForever bool

	// Clip is the optional window of the source to encode.
	Clip *Clip

	PadSquare bool
	PadColor  string

	StatsMode filter.StatsMode
}

// Validate returns a *ConfigError if the configuration is invalid.
func (c VideoConfig) Validate() error {
	switch {
	case c.FPS < 1 || c.FPS > 60:
		return &ConfigError{Field: "fps", Reason: fmt.Sprintf("%d not in [1,60]", c.FPS)}
	case c.Width < 0:
		return &ConfigError{Field: "width", Reason: fmt.Sprintf("negative width: %d", c.Width)}
	case !slices.Contains(ValidColors, c.Colors):
		return &ConfigError{Field: "colors", Reason: fmt.Sprintf("%d not one of %v", c.Colors, ValidColors)}
	case !validDither(c.Dither):
		return &ConfigError{Field: "dither", Reason: fmt.Sprintf("unknown mode: %v", c.Dither)}
	case c.BayerScale < 0 || c.BayerScale > MaxBayerScale:
		return &ConfigError{Field: "bayer_scale", Reason: fmt.Sprintf("%d not in [0,%d]", c.BayerScale, MaxBayerScale)}
	}
	switch c.StatsMode {
	case "", filter.Full, filter.Diff:
	default:
		return &ConfigError{Field: "stats_mode", Reason: fmt.Sprintf("unknown mode: %q", c.StatsMode)}
	}
	if c.Clip != nil {
		switch {
		case c.Clip.Start < 0:
			return &ConfigError{Field: "clip", Reason: fmt.Sprintf("negative start: %v", c.Clip.Start)}
		case c.Clip.End < 0:
			return &ConfigError{Field: "clip", Reason: fmt.Sprintf("negative end: %v", c.Clip.End)}
		case c.Clip.End != 0 && c.Clip.End <= c.Clip.Start:
			return &ConfigError{Field: "clip", Reason: fmt.Sprintf("end %v not after start %v", c.Clip.End, c.Clip.Start)}
		}
	}
	return nil
}

// job returns the filter job for the configuration reading from input.
func (c VideoConfig) job(input string) filter.Job {
	stats := c.StatsMode
	if stats == "" {
		stats = filter.Full
	}
	job := filter.Job{
		Input:       input,
		FPS:         c.FPS,
		Width:       c.Width,
		PadSquare:   c.PadSquare,
		PadColor:    c.PadColor,
		Colors:      c.Colors,
		StatsMode:   stats,
		Dither:      filterDither(c.Dither),
		LoopForever: c.LoopForever,
	}
	if c.Dither == quantize.Ordered {
		job.BayerScale = c.BayerScale
	}
	if c.Clip != nil {
		job.Start = c.Clip.Start
		if c.Clip.End != 0 {
			job.Duration = c.Clip.End - c.Clip.Start
		}
	}
	return job
}

// ExternalImageConfig is the configuration for encoding a sequence of
// still images with the external filter pipeline.
type ExternalImageConfig struct {
	// Interval is the time between frames.
	Interval time.Duration

	// Width is the output width. Zero retains the width
	// of the frames.
	Width int

	// Colors is the maximum palette size in [2,256].
	Colors int

	Dither quantize.Dither

	// FilterDither, if not empty, is used as the external
	// dither mode name in place of Dither. It allows modes
	// with no in-process equivalent such as sierra2_4a.
	FilterDither string

	LoopForever bool

	PadSquare bool
	PadColor  string
}

// Validate returns a *ConfigError if the configuration is invalid.
func (c ExternalImageConfig) Validate() error {
	switch {
	case c.Interval <= 0:
		return &ConfigError{Field: "delay", Reason: fmt.Sprintf("non-positive interval: %v", c.Interval)}
	case c.Width < 0:
		return &ConfigError{Field: "width", Reason: fmt.Sprintf("negative width: %d", c.Width)}
	case c.Colors < 2 || c.Colors > 256:
		return &ConfigError{Field: "colors", Reason: fmt.Sprintf("%d not in [2,256]", c.Colors)}
	case !validDither(c.Dither):
		return &ConfigError{Field: "dither", Reason: fmt.Sprintf("unknown mode: %v", c.Dither)}
	}
	return nil
}

func (c ExternalImageConfig) job(input string) filter.Job {
	dither := c.FilterDither
	if dither == "" {
		dither = filterDither(c.Dither)
	}
	return filter.Job{
		Input:       input,
		FrameRate:   FrameRateForInterval(c.Interval.Seconds()),
		Width:       c.Width,
		PadSquare:   c.PadSquare,
		PadColor:    c.PadColor,
		Colors:      c.Colors,
		StatsMode:   filter.Full,
		Dither:      dither,
		LoopForever: c.LoopForever,
	}
}

func validDither(d quantize.Dither) bool {
	switch d {
	case quantize.None, quantize.Ordered, quantize.Diffusion:
		return true
	default:
		return false
	}
}

// filterDither returns the external filter name for d.
func filterDither(d quantize.Dither) string {
	switch d {
	case quantize.Ordered:
		return "bayer"
	case quantize.Diffusion:
		return "floyd_steinberg"
	default:
		return "none"
	}
}
