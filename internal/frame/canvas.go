// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// UnifyCanvas returns a sequence where every frame has the maximum width
// and height found in seq. Smaller frames are centered on a canvas filled
// with bg. Frames that already have the maximum size are reused.
func UnifyCanvas(seq Sequence, bg color.Color) Sequence {
	if len(seq) == 0 {
		return seq
	}
	var size image.Point
	for _, f := range seq {
		s := f.Bounds().Size()
		size.X = max(size.X, s.X)
		size.Y = max(size.Y, s.Y)
	}
	return padTo(seq, size, Opaque(bg))
}

// PadSquare returns a sequence where every frame is centered on a square
// canvas filled with bg. The side of the square is the largest dimension
// of any frame in seq.
func PadSquare(seq Sequence, bg color.Color) Sequence {
	if len(seq) == 0 {
		return seq
	}
	var side int
	for _, f := range seq {
		s := f.Bounds().Size()
		side = max(side, s.X, s.Y)
	}
	return padTo(seq, image.Point{X: side, Y: side}, Opaque(bg))
}

func padTo(seq Sequence, size image.Point, bg color.Color) Sequence {
	out := make(Sequence, len(seq))
	for i, f := range seq {
		b := f.Bounds()
		if b.Size() == size {
			out[i] = f
			continue
		}
		canvas := image.NewRGBA(image.Rectangle{Max: size})
		draw.Draw(canvas, canvas.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
		off := image.Point{X: (size.X - b.Dx()) / 2, Y: (size.Y - b.Dy()) / 2}
		draw.Draw(canvas, b.Add(off), f.Image, b.Min, draw.Src)
		out[i] = &Frame{Name: f.Name, Image: canvas}
	}
	return out
}

// Fit returns a sequence where every frame has the size of the first
// frame. Frames of a different size are resampled.
func Fit(seq Sequence) Sequence {
	if len(seq) == 0 {
		return seq
	}
	size := seq[0].Bounds().Size()
	out := make(Sequence, len(seq))
	for i, f := range seq {
		if f.Bounds().Size() == size {
			out[i] = f
			continue
		}
		out[i] = &Frame{Name: f.Name, Image: Resize(f.Image, size.X, size.Y)}
	}
	return out
}
