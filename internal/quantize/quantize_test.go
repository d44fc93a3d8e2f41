// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quantize

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
)

var parseDitherTests = []struct {
	in      string
	want    Dither
	wantErr bool
}{
	{in: "", want: None},
	{in: "none", want: None},
	{in: "bayer", want: Ordered},
	{in: "Ordered", want: Ordered},
	{in: "floyd_steinberg", want: Diffusion},
	{in: "floyd", want: Diffusion},
	{in: "fs", want: Diffusion},
	{in: " FS ", want: Diffusion},
	{in: "sierra2_4a", wantErr: true},
}

func TestParseDither(t *testing.T) {
	for _, test := range parseDitherTests {
		got, err := ParseDither(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("unexpected dither for %q: got:%v want:%v", test.in, got, test.want)
		}
	}
}

func TestDitherText(t *testing.T) {
	for _, d := range []Dither{None, Ordered, Diffusion} {
		text, err := d.MarshalText()
		if err != nil {
			t.Fatalf("unexpected error marshaling %v: %v", d, err)
		}
		var got Dither
		err = got.UnmarshalText(text)
		if err != nil {
			t.Fatalf("unexpected error unmarshaling %q: %v", text, err)
		}
		if got != d {
			t.Errorf("unexpected round trip: got:%v want:%v", got, d)
		}
	}
}

func stripes(cols ...color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, len(cols), 3))
	for x, c := range cols {
		for y := 0; y < 3; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestQuantizeNone(t *testing.T) {
	pal := color.Palette{black, white, red, green, blue}
	img := stripes(red, color.RGBA{R: 0xf0, G: 0x10, A: 0xff}, white, color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}, blue)
	got, err := Quantize(img, pal, None)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint8{2, 2, 1, 0, 4}
	for y := 0; y < 3; y++ {
		var row []uint8
		for x := range want {
			row = append(row, got.ColorIndexAt(x, y))
		}
		if !cmp.Equal(row, want) {
			t.Errorf("unexpected indices in row %d:\n--- want:\n+++ got:\n%s", y, cmp.Diff(want, row))
		}
	}
}

func TestQuantizeTies(t *testing.T) {
	// Grey 0x80 is equidistant from the two entries under each
	// ordering, so the lowest index must be used.
	mid := color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	lo := color.RGBA{R: 0x70, G: 0x70, B: 0x70, A: 0xff}
	hi := color.RGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xff}
	for _, pal := range []color.Palette{{lo, hi}, {hi, lo}} {
		got, err := Quantize(stripes(mid), pal, None)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx := got.ColorIndexAt(0, 0); idx != 0 {
			t.Errorf("unexpected index for tie with palette %v: got:%d want:0", pal, idx)
		}
	}
}

func TestQuantizePalette(t *testing.T) {
	pal := color.Palette{black, white, red}
	img := image.NewRGBA(image.Rect(2, 3, 12, 9))
	for y := 3; y < 9; y++ {
		for x := 2; x < 12; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 10), A: 0xff})
		}
	}
	for _, d := range []Dither{None, Ordered, Diffusion} {
		t.Run(d.String(), func(t *testing.T) {
			got, err := Quantize(img, pal, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Bounds() != img.Bounds() {
				t.Errorf("unexpected bounds: got:%v want:%v", got.Bounds(), img.Bounds())
			}
			if len(got.Palette) != len(pal) || &got.Palette[0] != &pal[0] {
				t.Error("palette is not shared")
			}
			for _, p := range got.Pix {
				if int(p) >= len(pal) {
					t.Fatalf("index out of palette range: %d", p)
				}
			}
		})
	}
}

func TestQuantizeDeterministic(t *testing.T) {
	pal := color.Palette{black, white, red, green, blue}
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: uint8((x + y) * 8), A: 0xff})
		}
	}
	for _, d := range []Dither{None, Ordered, Diffusion} {
		t.Run(d.String(), func(t *testing.T) {
			first, err := Quantize(img, pal, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := 0; i < 3; i++ {
				got, err := Quantize(img, pal, d)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !cmp.Equal(got.Pix, first.Pix) {
					t.Fatalf("output differs on run %d", i)
				}
			}
		})
	}
}

func TestQuantizeSolidExact(t *testing.T) {
	pal := color.Palette{red, green, blue}
	for _, d := range []Dither{None, Ordered, Diffusion} {
		t.Run(d.String(), func(t *testing.T) {
			got, err := Quantize(stripes(green, green, green), pal, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, p := range got.Pix {
				if p != 1 {
					t.Errorf("unexpected index at %d: got:%d want:1", i, p)
				}
			}
		})
	}
}

func TestQuantizeShortPalette(t *testing.T) {
	_, err := Quantize(stripes(red), color.Palette{red}, None)
	if err == nil {
		t.Error("expected error for single entry palette")
	}
}

func TestQuantizeOffsetOrigin(t *testing.T) {
	pal := color.Palette{black, white, red, green, blue}
	fill := func(img *image.RGBA) {
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dx, dy := x-b.Min.X, y-b.Min.Y
				img.SetRGBA(x, y, color.RGBA{R: uint8(dx * 40), G: uint8(dy * 50), B: uint8((dx + dy) * 20), A: 0xff})
			}
		}
	}
	origin := image.NewRGBA(image.Rect(0, 0, 3, 3))
	fill(origin)
	offset := image.NewRGBA(image.Rect(1, 1, 4, 4))
	fill(offset)

	for _, d := range []Dither{None, Ordered, Diffusion} {
		t.Run(d.String(), func(t *testing.T) {
			want, err := Quantize(origin, pal, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := Quantize(offset, pal, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Bounds() != offset.Bounds() {
				t.Errorf("unexpected bounds: got:%v want:%v", got.Bounds(), offset.Bounds())
			}
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					g, w := got.ColorIndexAt(x+1, y+1), want.ColorIndexAt(x, y)
					if g != w {
						t.Errorf("unexpected index at (%d,%d): got:%d want:%d", x+1, y+1, g, w)
					}
				}
			}
		})
	}
}
