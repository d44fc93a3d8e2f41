// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame provides decoding and normalization of still images into
// opaque frames suitable for palette reduction.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// Item is a named raw image to be decoded.
type Item struct {
	Name string
	Data []byte
}

// Frame is a decoded and normalized raster. The Image of a Frame is always
// opaque with its bounds rooted at the origin. Frames are not altered after
// construction; all transformations return new frames.
type Frame struct {
	Name  string
	Image *image.RGBA
}

// Bounds returns the bounds of the frame's image.
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Bounds()
}

// Sequence is an ordered set of frames.
type Sequence []*Frame

// Images returns the images held by the sequence.
func (s Sequence) Images() []image.Image {
	imgs := make([]image.Image, len(s))
	for i, f := range s {
		imgs[i] = f.Image
	}
	return imgs
}

// Bounds returns the common bounds of the frames in the sequence. It
// returns an error if the sequence is empty or the frames differ in size.
func (s Sequence) Bounds() (image.Rectangle, error) {
	if len(s) == 0 {
		return image.Rectangle{}, fmt.Errorf("empty sequence")
	}
	b := s[0].Bounds()
	for i, f := range s[1:] {
		if f.Bounds() != b {
			return b, fmt.Errorf("mismatched bounds at %d: %v != %v", i+1, f.Bounds(), b)
		}
	}
	return b, nil
}

// Options holds per-frame normalization parameters.
type Options struct {
	// Background is the color alpha is flattened onto. A nil
	// Background is white.
	Background color.Color

	// MaxWidth is the maximum width of a frame. Wider frames
	// are reduced preserving their aspect ratio. Frames are
	// never enlarged. A zero MaxWidth leaves frames unscaled.
	MaxWidth int
}

func (o Options) background() color.Color {
	return Opaque(o.Background)
}

// Opaque returns c with full opacity. A nil c is returned as white.
func Opaque(c color.Color) color.Color {
	if c == nil {
		return color.White
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return n
}

// DecodeError is returned when an input item cannot be decoded.
type DecodeError struct {
	Index int
	Name  string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode frame %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode decodes the image held in data. Animated GIF data is decoded to
// its first frame.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// Normalize decodes the data and returns an opaque frame, flattened onto
// the background and reduced to the maximum width specified by opts.
func Normalize(name string, data []byte, opts Options) (*Frame, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return FromImage(name, img, opts), nil
}

// FromImage returns a normalized frame from an already decoded image.
func FromImage(name string, img image.Image, opts Options) *Frame {
	rgba := flatten(img, opts.background())
	if opts.MaxWidth > 0 && rgba.Bounds().Dx() > opts.MaxWidth {
		b := rgba.Bounds()
		h := int(math.Round(float64(b.Dy()) * float64(opts.MaxWidth) / float64(b.Dx())))
		rgba = Resize(rgba, opts.MaxWidth, max(h, 1))
	}
	return &Frame{Name: name, Image: rgba}
}

// NormalizeAll normalizes all the items in order. The first item that
// fails to decode aborts the process and is reported as a *DecodeError.
func NormalizeAll(items []Item, opts Options) (Sequence, error) {
	seq := make(Sequence, 0, len(items))
	for i, it := range items {
		f, err := Normalize(it.Name, it.Data, opts)
		if err != nil {
			return nil, &DecodeError{Index: i, Name: it.Name, Err: err}
		}
		seq = append(seq, f)
	}
	return seq, nil
}

// flatten renders img over an opaque background into a new RGBA image
// with bounds rooted at the origin.
func flatten(img image.Image, bg color.Color) *image.RGBA {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rectangle{Max: src.Size()})
	draw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	return dst
}

// Resize returns img resampled to w×h using a Lanczos filter.
func Resize(img image.Image, w, h int) *image.RGBA {
	g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
