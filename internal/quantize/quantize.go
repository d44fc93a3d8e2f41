// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package quantize remaps full color frames onto a fixed palette.
package quantize

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// Dither is a dithering mode.
type Dither int

const (
	// None maps each pixel to its nearest palette entry.
	None Dither = iota
	// Ordered applies an 8×8 Bayer threshold matrix.
	Ordered
	// Diffusion applies Floyd-Steinberg error diffusion.
	Diffusion
)

func (d Dither) String() string {
	switch d {
	case None:
		return "none"
	case Ordered:
		return "bayer"
	case Diffusion:
		return "floyd_steinberg"
	default:
		return fmt.Sprintf("Dither(%d)", int(d))
	}
}

// ParseDither returns the dithering mode named by s.
func ParseDither(s string) (Dither, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "bayer", "ordered":
		return Ordered, nil
	case "floyd_steinberg", "floyd", "fs", "diffusion":
		return Diffusion, nil
	default:
		return None, fmt.Errorf("unknown dither mode: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Dither) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dither) UnmarshalText(text []byte) error {
	v, err := ParseDither(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// bayerSize is the dimension of the ordered dithering matrix.
const bayerSize = 8

// Quantize returns img remapped onto pal using the dithering mode d. The
// returned image's palette is pal and its bounds are those of img. For a
// given img, pal and d the result is always the same.
func Quantize(img image.Image, pal color.Palette, d Dither) (*image.Paletted, error) {
	if len(pal) < 2 {
		return nil, errors.New("palette must have at least two colors")
	}
	var dst *image.Paletted
	switch d {
	case None:
		dst = nearest(img, pal)
	case Ordered, Diffusion:
		dd := dither.NewDitherer(pal)
		if dd == nil {
			return nil, errors.New("invalid dithering palette")
		}
		if d == Ordered {
			dd.Mapper = dither.Bayer(bayerSize, bayerSize, 1.0)
		} else {
			dd.Matrix = dither.FloydSteinberg
		}
		dst = ditherPaletted(dd, img)
	default:
		return nil, fmt.Errorf("invalid dither mode: %v", d)
	}
	// Share the palette by identity so that frames may
	// be written against a single global color table.
	dst.Palette = pal
	return dst, nil
}

// ditherPaletted dithers img with d. The ditherer indexes its error
// buffers from the origin, so images with an offset origin are dithered
// from an origin-rooted copy and the result translated back.
func ditherPaletted(d *dither.Ditherer, img image.Image) *image.Paletted {
	b := img.Bounds()
	if b.Min == (image.Point{}) {
		return d.DitherPaletted(img)
	}
	src := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
	dst := d.DitherPaletted(src)
	dst.Rect = b
	return dst
}

// nearest maps each pixel of img to the closest palette entry. Ties are
// resolved in favor of the lowest index.
func nearest(img image.Image, pal color.Palette) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(b, pal)
	cache := make(map[color.RGBA]uint8)
	index := func(c color.RGBA) uint8 {
		idx, ok := cache[c]
		if !ok {
			idx = uint8(pal.Index(c))
			cache[c] = idx
		}
		return idx
	}
	if src, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			j := dst.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x, i, j = x+1, i+4, j+1 {
				dst.Pix[j] = index(color.RGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: src.Pix[i+3]})
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			dst.SetColorIndex(x, y, index(c))
		}
	}
	return dst
}
