// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"time"
)

// MinFrames is the minimum number of frames accepted for an animation.
// A single frame is a still image and is treated as a usage error.
const MinFrames = 2

// CheckCount returns an *AssemblyError if n is less than MinFrames.
func CheckCount(n int) error {
	if n < MinFrames {
		return &AssemblyError{Reason: fmt.Sprintf("need at least %d frames, have %d", MinFrames, n)}
	}
	return nil
}

// AssemblyError is returned when frames cannot be assembled into an
// animation.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "cannot assemble animation: " + e.Reason
}

// Disposal is a GIF frame disposal method.
type Disposal byte

const (
	// DisposalUnspecified is replaced by RestoreBackground
	// during assembly.
	DisposalUnspecified Disposal = 0

	// Keep leaves the frame in place.
	Keep Disposal = gif.DisposalNone
	// RestoreBackground clears the frame's area to the
	// background before the next frame is drawn.
	RestoreBackground Disposal = gif.DisposalBackground
	// RestorePrevious restores the frame's area to its
	// state before the frame was drawn.
	RestorePrevious Disposal = gif.DisposalPrevious
)

func (d Disposal) String() string {
	switch d {
	case DisposalUnspecified:
		return "unspecified"
	case Keep:
		return "none"
	case RestoreBackground:
		return "background"
	case RestorePrevious:
		return "previous"
	default:
		return fmt.Sprintf("Disposal(%d)", byte(d))
	}
}

// Options controls animation assembly.
type Options struct {
	// Delay is the delay between each frame. It is
	// rounded to the nearest 10ms.
	Delay time.Duration

	// LoopForever specifies that the animation repeats
	// indefinitely. Otherwise it plays exactly once.
	LoopForever bool

	// Disposal is the disposal method used for each
	// frame. The zero value is RestoreBackground.
	Disposal Disposal
}

// Animation is an encoded animated GIF.
type Animation struct {
	Data []byte

	Frames        int
	Width, Height int
}

// Size returns the length of the encoded data.
func (a *Animation) Size() int { return len(a.Data) }

// Centiseconds returns d rounded to the nearest GIF delay unit.
func Centiseconds(d time.Duration) int {
	return int(math.Round(float64(d) / float64(10*time.Millisecond)))
}

// Assemble returns the frames encoded as an animated GIF. All frames must
// have the same bounds. The palette of the first frame is written as the
// global color table; frames sharing that palette carry no local table.
func Assemble(frames []*image.Paletted, opts Options) (*Animation, error) {
	if len(frames) == 0 {
		return nil, &AssemblyError{Reason: "no frames"}
	}
	if opts.Delay < 0 {
		return nil, &AssemblyError{Reason: fmt.Sprintf("negative delay: %v", opts.Delay)}
	}
	delay := Centiseconds(opts.Delay)
	if delay > math.MaxUint16 {
		return nil, &AssemblyError{Reason: fmt.Sprintf("delay too long: %v", opts.Delay)}
	}
	disposal := opts.Disposal
	if disposal == DisposalUnspecified {
		disposal = RestoreBackground
	}

	var b image.Rectangle
	for i, f := range frames {
		if f == nil {
			return nil, &AssemblyError{Reason: fmt.Sprintf("nil frame at %d", i)}
		}
		if i == 0 {
			b = f.Bounds()
		} else if f.Bounds() != b {
			return nil, &AssemblyError{Reason: fmt.Sprintf("mismatched bounds at %d: %v != %v", i, f.Bounds(), b)}
		}
		if len(f.Palette) == 0 || len(f.Palette) > 256 {
			return nil, &AssemblyError{Reason: fmt.Sprintf("invalid palette size at %d: %d", i, len(f.Palette))}
		}
	}
	if b.Empty() {
		return nil, &AssemblyError{Reason: "empty frame bounds"}
	}

	g := &gif.GIF{
		Image:    frames,
		Delay:    make([]int, len(frames)),
		Disposal: make([]byte, len(frames)),
		Config: image.Config{
			ColorModel: color.Palette(frames[0].Palette),
			Width:      b.Max.X,
			Height:     b.Max.Y,
		},
		LoopCount: -1,
	}
	if opts.LoopForever {
		g.LoopCount = 0
	}
	for i := range frames {
		g.Delay[i] = delay
		g.Disposal[i] = byte(disposal)
	}

	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		return nil, &AssemblyError{Reason: err.Error()}
	}
	return &Animation{
		Data:   buf.Bytes(),
		Frames: len(frames),
		Width:  b.Max.X,
		Height: b.Max.Y,
	}, nil
}
