// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}

	rgb = color.Palette{red, green, blue}
)

func solid(r image.Rectangle, pal color.Palette, idx uint8) *image.Paletted {
	img := image.NewPaletted(r, pal)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func frames(n int) []*image.Paletted {
	f := make([]*image.Paletted, n)
	for i := range f {
		f[i] = solid(image.Rect(0, 0, 10, 10), rgb, uint8(i%len(rgb)))
	}
	return f
}

var assembleTests = []struct {
	name         string
	opts         Options
	wantDelay    int
	wantLoop     int
	wantDisposal byte
}{
	{
		name:         "loop_forever",
		opts:         Options{Delay: 500 * time.Millisecond, LoopForever: true},
		wantDelay:    50,
		wantLoop:     0,
		wantDisposal: gif.DisposalBackground,
	},
	{
		name:         "play_once",
		opts:         Options{Delay: time.Second},
		wantDelay:    100,
		wantLoop:     -1,
		wantDisposal: gif.DisposalBackground,
	},
	{
		name:         "rounded_delay",
		opts:         Options{Delay: 66 * time.Millisecond, LoopForever: true, Disposal: Keep},
		wantDelay:    7,
		wantLoop:     0,
		wantDisposal: gif.DisposalNone,
	},
}

func TestAssemble(t *testing.T) {
	for _, test := range assembleTests {
		t.Run(test.name, func(t *testing.T) {
			anim, err := Assemble(frames(3), test.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if anim.Frames != 3 || anim.Width != 10 || anim.Height != 10 {
				t.Errorf("unexpected metadata: frames=%d size=%dx%d", anim.Frames, anim.Width, anim.Height)
			}
			if anim.Size() != len(anim.Data) || anim.Size() == 0 {
				t.Errorf("unexpected size: %d", anim.Size())
			}

			g, err := gif.DecodeAll(bytes.NewReader(anim.Data))
			if err != nil {
				t.Fatalf("failed to decode assembled animation: %v", err)
			}
			if len(g.Image) != 3 {
				t.Fatalf("unexpected frame count: got:%d want:3", len(g.Image))
			}
			if g.LoopCount != test.wantLoop {
				t.Errorf("unexpected loop count: got:%d want:%d", g.LoopCount, test.wantLoop)
			}
			for i := range g.Image {
				if g.Delay[i] != test.wantDelay {
					t.Errorf("unexpected delay for frame %d: got:%d want:%d", i, g.Delay[i], test.wantDelay)
				}
				if g.Disposal[i] != test.wantDisposal {
					t.Errorf("unexpected disposal for frame %d: got:%d want:%d", i, g.Disposal[i], test.wantDisposal)
				}
				want := rgb[i]
				if got := color.RGBAModel.Convert(g.Image[i].At(5, 5)); got != want {
					t.Errorf("unexpected color for frame %d: got:%v want:%v", i, got, want)
				}
			}
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	mismatched := frames(2)
	mismatched[1] = solid(image.Rect(0, 0, 12, 10), rgb, 0)

	for _, test := range []struct {
		name   string
		frames []*image.Paletted
		opts   Options
	}{
		{name: "empty", frames: nil},
		{name: "mismatched", frames: mismatched},
		{name: "nil_frame", frames: []*image.Paletted{frames(1)[0], nil}},
		{name: "negative_delay", frames: frames(2), opts: Options{Delay: -time.Second}},
		{name: "empty_bounds", frames: []*image.Paletted{solid(image.Rectangle{}, rgb, 0), solid(image.Rectangle{}, rgb, 0)}},
	} {
		t.Run(test.name, func(t *testing.T) {
			anim, err := Assemble(test.frames, test.opts)
			if anim != nil {
				t.Errorf("unexpected animation: %v", anim)
			}
			var asmErr *AssemblyError
			if !errors.As(err, &asmErr) {
				t.Errorf("unexpected error type: %T %[1]v", err)
			}
		})
	}
}

func TestCheckCount(t *testing.T) {
	for n, wantErr := range []bool{true, true, false, false} {
		err := CheckCount(n)
		if (err != nil) != wantErr {
			t.Errorf("unexpected error for %d frames: %v", n, err)
		}
		if err != nil {
			var asmErr *AssemblyError
			if !errors.As(err, &asmErr) {
				t.Errorf("unexpected error type: %T", err)
			}
		}
	}
}

func TestInspect(t *testing.T) {
	anim, err := Assemble(frames(4), Options{Delay: 250 * time.Millisecond, LoopForever: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsGIF(AsReadPeeker(bytes.NewReader(anim.Data))) {
		t.Error("assembled animation not identified as GIF")
	}
	got, err := Inspect(bytes.NewReader(anim.Data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &Info{
		Frames: 4,
		Width:  10, Height: 10,
		Colors:    4, // Color tables are padded to a power of two.
		Delays:    []time.Duration{250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond},
		Disposal:  []Disposal{RestoreBackground, RestoreBackground, RestoreBackground, RestoreBackground},
		LoopCount: 0,
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected info:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
	if !got.LoopForever() {
		t.Error("expected infinite loop")
	}
	if d := got.Duration(); d != time.Second {
		t.Errorf("unexpected duration: got:%v want:%v", d, time.Second)
	}
}

func TestInspectNotGIF(t *testing.T) {
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if IsGIF(AsReadPeeker(bytes.NewReader(buf.Bytes()))) {
		t.Error("PNG identified as GIF")
	}
	_, err = Inspect(&buf)
	if !errors.Is(err, ErrNotGIF) {
		t.Errorf("unexpected error: got:%v want:%v", err, ErrNotGIF)
	}
}

func TestRender(t *testing.T) {
	// The second frame only covers the top-left quarter so the
	// disposal of the first frame is visible in the rendering.
	f := frames(1)
	f = append(f, solid(image.Rect(0, 0, 5, 5), rgb, 2))
	g := &gif.GIF{
		Image:    f,
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone},
		Config: image.Config{
			ColorModel: rgb,
			Width:      10,
			Height:     10,
		},
	}
	var got []color.Color
	err := Render(g, func(i int, img image.Image) error {
		got = append(got, color.RGBAModel.Convert(img.At(1, 1)), color.RGBAModel.Convert(img.At(8, 8)))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []color.Color{red, red, blue, red}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected rendered colors:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}

	g.Disposal[0] = gif.DisposalBackground
	g.BackgroundIndex = 1
	got = got[:0]
	err = Render(g, func(i int, img image.Image) error {
		got = append(got, color.RGBAModel.Convert(img.At(8, 8)))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = []color.Color{red, green}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected rendered colors after background disposal:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}
