// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package palette

import (
	"image"
	"image/color"
	"slices"
)

// rgb is an 8-bit opaque color.
type rgb [3]uint8

func (c rgb) key() uint32 {
	return uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2])
}

func (c rgb) color() color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}

// bin is a histogram entry.
type bin struct {
	c rgb
	n int
}

// histogram returns the distinct colors of img and their pixel counts,
// sorted by packed color value. If bits is less than 8, colors are
// bucketed by their top bits and each bucket is represented by its mean.
func histogram(img image.Image, bits uint) []bin {
	type acc struct {
		sum [3]int
		n   int
	}
	shift := 8 - min(bits, 8)
	counts := make(map[uint32]*acc)
	add := func(c rgb) {
		k := uint32(c[0]>>shift)<<16 | uint32(c[1]>>shift)<<8 | uint32(c[2]>>shift)
		a, ok := counts[k]
		if !ok {
			a = &acc{}
			counts[k] = a
		}
		for i, v := range c {
			a.sum[i] += int(v)
		}
		a.n++
	}

	b := img.Bounds()
	if src, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
				add(rgb{src.Pix[i], src.Pix[i+1], src.Pix[i+2]})
			}
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				add(rgb{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)})
			}
		}
	}

	hist := make([]bin, 0, len(counts))
	for _, a := range counts {
		var c rgb
		for i, s := range a.sum {
			c[i] = uint8((s + a.n/2) / a.n)
		}
		hist = append(hist, bin{c: c, n: a.n})
	}
	slices.SortFunc(hist, func(a, b bin) int {
		switch ka, kb := a.c.key(), b.c.key(); {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return b.n - a.n
	})
	return hist
}

// mean returns the count-weighted mean color of the bins.
func mean(bins []bin) rgb {
	var (
		sum [3]int
		n   int
	)
	for _, b := range bins {
		for i, v := range b.c {
			sum[i] += int(v) * b.n
		}
		n += b.n
	}
	var c rgb
	if n == 0 {
		return c
	}
	for i, s := range sum {
		c[i] = uint8((s + n/2) / n)
	}
	return c
}

func toPalette(colors []rgb) color.Palette {
	pal := make(color.Palette, len(colors))
	for i, c := range colors {
		pal[i] = c.color()
	}
	return pal
}
