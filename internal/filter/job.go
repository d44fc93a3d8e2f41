// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// StatsMode is the palette generation statistics mode.
type StatsMode string

const (
	// Full computes the palette over all frames.
	Full StatsMode = "full"
	// Diff favors the parts of frames that change.
	Diff StatsMode = "diff"
)

// DefaultAlphaThreshold is the alpha threshold used when a job does not
// specify one.
const DefaultAlphaThreshold = 128

// Job is an external two-pass palette encoding job.
type Job struct {
	// Input is the media input path. For image sequences it
	// is a numbered pattern such as "dir/%04d.png".
	Input string

	// FrameRate is the input frame rate for image sequences,
	// for example "2" or "2/3". It is empty for video input.
	FrameRate string

	// FPS is the output frame rate. Zero retains the
	// input frame timing.
	FPS int

	// Start and Duration select a window of the input in
	// seconds. Zero values are unset.
	Start, Duration float64

	// Width is the output width. Zero retains the input
	// width. Height is scaled to preserve aspect ratio.
	Width int

	// PadSquare pads each frame to a square filled with
	// PadColor.
	PadSquare bool
	PadColor  string

	// Colors is the maximum palette size.
	Colors int

	StatsMode StatsMode

	// Dither is the palette application dither mode
	// name: none, bayer, floyd_steinberg or sierra2_4a.
	Dither string

	// BayerScale is the bayer pattern scale in [0,5]. It
	// is only used with bayer dithering.
	BayerScale int

	// AlphaThreshold is the alpha threshold for
	// transparency. Zero is DefaultAlphaThreshold.
	AlphaThreshold int

	LoopForever bool
}

// Graph returns the per-frame filter chain shared by both passes.
func Graph(job Job) string {
	var parts []string
	if job.FPS > 0 {
		parts = append(parts, "fps="+strconv.Itoa(job.FPS))
	}
	width := "iw"
	if job.Width > 0 {
		width = strconv.Itoa(job.Width)
	}
	parts = append(parts, fmt.Sprintf("scale=%s:-1:flags=lanczos", width))
	if job.PadSquare {
		side := width
		if job.Width <= 0 {
			side = `max(iw\,ih)`
		}
		color := job.PadColor
		if color == "" {
			color = "white"
		}
		parts = append(parts, fmt.Sprintf("pad=%[1]s:%[1]s:(ow-iw)/2:(oh-ih)/2:color=%s", side, color))
	}
	return strings.Join(parts, ",")
}

// inputArgs returns the input options and media input shared by both
// passes. The clip window is given as input options so that it applies
// to the media and not to the palette input.
func inputArgs(job Job) []string {
	var args []string
	if job.FrameRate != "" {
		args = append(args, "-framerate", job.FrameRate)
	}
	if job.Start > 0 {
		args = append(args, "-ss", seconds(job.Start))
	}
	if job.Duration > 0 {
		args = append(args, "-t", seconds(job.Duration))
	}
	return append(args, "-i", job.Input)
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// PaletteArgs returns the arguments for the palette generation pass
// writing the palette image to palettePath.
func PaletteArgs(job Job, palettePath string) []string {
	stats := job.StatsMode
	if stats == "" {
		stats = Full
	}
	args := []string{"-y"}
	args = append(args, inputArgs(job)...)
	return append(args,
		"-vf", fmt.Sprintf("%s,palettegen=max_colors=%d:stats_mode=%s", Graph(job), job.Colors, stats),
		palettePath,
	)
}

// ApplyArgs returns the arguments for the palette application pass using
// the palette image at palettePath and writing the animation to outPath.
func ApplyArgs(job Job, palettePath, outPath string) []string {
	dither := job.Dither
	if dither == "" {
		dither = "none"
	}
	use := "paletteuse=dither=" + dither
	if dither == "bayer" {
		use += ":bayer_scale=" + strconv.Itoa(job.BayerScale)
	}
	alpha := job.AlphaThreshold
	if alpha == 0 {
		alpha = DefaultAlphaThreshold
	}
	use += ":alpha_threshold=" + strconv.Itoa(alpha)

	loop := "-1"
	if job.LoopForever {
		loop = "0"
	}
	args := []string{"-y"}
	args = append(args, inputArgs(job)...)
	return append(args,
		"-i", palettePath,
		"-lavfi", fmt.Sprintf("%s[x];[x][1:v]%s", Graph(job), use),
		"-loop", loop,
		outPath,
	)
}
