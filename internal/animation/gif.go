// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"

	"golang.org/x/image/draw"
)

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// ErrNotGIF is returned when decoding data that is not a GIF.
var ErrNotGIF = errors.New("not a GIF")

// Decode returns the GIF decoded from the provided io.Reader. Delay,
// disposal and global background index values are checked for validity.
func Decode(r io.Reader) (*gif.GIF, error) {
	rp := AsReadPeeker(r)
	if !IsGIF(rp) {
		return nil, ErrNotGIF
	}
	g, err := gif.DecodeAll(rp)
	if err != nil {
		return nil, err
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return nil, fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return nil, fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && idx >= len(pal) {
		return nil, fmt.Errorf("global background colour index not in palette: %d", idx)
	}
	return g, nil
}

// Info describes an encoded animation.
type Info struct {
	Frames        int
	Width, Height int

	// Colors is the size of the global color table.
	// It is zero if there is no global table.
	Colors int

	Delays   []time.Duration
	Disposal []Disposal

	// LoopCount is the decoded loop count. Zero
	// means forever and -1 means play once.
	LoopCount int
}

// LoopForever returns whether the animation repeats indefinitely.
func (i *Info) LoopForever() bool { return i.LoopCount == 0 }

// Duration returns the time taken for one play through the animation.
func (i *Info) Duration() time.Duration {
	var d time.Duration
	for _, v := range i.Delays {
		d += v
	}
	return d
}

// Inspect decodes the GIF held by r and returns a description of it.
func Inspect(r io.Reader) (*Info, error) {
	g, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Describe(g), nil
}

// Describe returns a description of g.
func Describe(g *gif.GIF) *Info {
	info := &Info{
		Frames:    len(g.Image),
		Width:     g.Config.Width,
		Height:    g.Config.Height,
		Delays:    make([]time.Duration, len(g.Image)),
		Disposal:  make([]Disposal, len(g.Image)),
		LoopCount: g.LoopCount,
	}
	if pal, ok := g.Config.ColorModel.(color.Palette); ok {
		info.Colors = len(pal)
	}
	for i := range g.Image {
		if g.Delay != nil {
			info.Delays[i] = 10 * time.Duration(g.Delay[i]) * time.Millisecond
		}
		if g.Disposal != nil {
			info.Disposal[i] = Disposal(g.Disposal[i])
		}
	}
	return info
}

// Render composites the frames of g onto a canvas honoring each frame's
// disposal method and calls fn with the index of each frame and the
// rendered canvas. The canvas is reused between calls and must not be
// retained by fn.
func Render(g *gif.GIF, fn func(int, image.Image) error) error {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, frame := range g.Image {
			bounds = bounds.Union(frame.Bounds())
		}
	}
	dst := image.NewRGBA(bounds)

	var background image.Image
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && idx < len(pal) {
		background = &image.Uniform{pal[idx]}
	}
	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)

	for f, frame := range g.Image {
		var disposal Disposal
		if g.Disposal != nil {
			disposal = Disposal(g.Disposal[f])
		}
		var restore *image.RGBA
		if disposal == RestorePrevious {
			restore = image.NewRGBA(frame.Bounds())
			draw.Copy(restore, restore.Bounds().Min, dst, frame.Bounds(), draw.Src, nil)
		}
		draw.Copy(dst, frame.Bounds().Min, frame, frame.Bounds(), draw.Over, nil)
		err := fn(f, dst)
		if err != nil {
			return err
		}
		switch disposal {
		case RestoreBackground:
			bg := background
			if bg == nil {
				if idx := int(g.BackgroundIndex); idx < len(frame.Palette) {
					bg = &image.Uniform{frame.Palette[idx]}
				} else {
					bg = image.Transparent
				}
			}
			draw.Draw(dst, frame.Bounds(), bg, image.Point{}, draw.Src)
		case RestorePrevious:
			draw.Copy(dst, frame.Bounds().Min, restore, restore.Bounds(), draw.Src, nil)
		}
	}
	return nil
}
