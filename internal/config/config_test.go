// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/framegif/internal/encode"
	"github.com/kortschak/framegif/internal/palette"
	"github.com/kortschak/framegif/internal/quantize"
)

const testConfig = `
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[image]
delay = 0.5
max_width = 300
methods = ["octree"]

[video]
pad_color = "#f6f6f6"

[preset.tiny.video]
width = 240
colors = 64
`

func TestUnmarshal(t *testing.T) {
	got, err := Unmarshal([]byte(testConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &File{
		FFmpeg: "/opt/ffmpeg/bin/ffmpeg",
		Image: &Image{
			Delay:    ptr(0.5),
			MaxWidth: ptr(300),
			Methods:  []string{"octree"},
		},
		Video: &Video{
			PadColor: ptr("#f6f6f6"),
		},
		Preset: map[string]*Preset{
			"tiny": {Video: &Video{Width: ptr(240), Colors: ptr(64)}},
		},
	}
	if !cmp.Equal(want, got) {
		t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	for _, test := range []struct {
		name string
		data string
	}{
		{name: "syntax", data: "[image\n"},
		{name: "type", data: "[image]\ncolors = \"many\"\n"},
		{name: "schema", data: "[video]\nstats_mode = \"some\"\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(test.data))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(testConfig), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if f.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("unexpected ffmpeg path: %q", f.FFmpeg)
	}

	_, err = Load(filepath.Join(dir, "missing.toml"))
	if err == nil {
		t.Error("expected error for missing explicit config")
	}

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "empty"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(dir, "empty"))
	f, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error loading absent default config: %v", err)
	}
	if !cmp.Equal(&File{}, f) {
		t.Errorf("unexpected config for absent default:\n--- want:\n+++ got:\n%s", cmp.Diff(&File{}, f))
	}

	if runtime.GOOS != "linux" {
		return
	}
	home := filepath.Join(dir, "home")
	err = os.MkdirAll(filepath.Join(home, Name), 0o755)
	if err != nil {
		t.Fatalf("unexpected error making config dir: %v", err)
	}
	err = os.WriteFile(filepath.Join(home, Name, "config.toml"), []byte(testConfig), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", home)
	f, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error loading default config: %v", err)
	}
	if f.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("unexpected ffmpeg path from default config: %q", f.FFmpeg)
	}
}

func TestResolve(t *testing.T) {
	f, err := Unmarshal([]byte(testConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("defaults", func(t *testing.T) {
		s, err := Resolve(nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cmp.Equal(DefaultImage(), s.Image) {
			t.Errorf("unexpected image options:\n--- want:\n+++ got:\n%s", cmp.Diff(DefaultImage(), s.Image))
		}
		if !cmp.Equal(DefaultVideo(), s.Video) {
			t.Errorf("unexpected video options:\n--- want:\n+++ got:\n%s", cmp.Diff(DefaultVideo(), s.Video))
		}
	})

	t.Run("file", func(t *testing.T) {
		s, err := Resolve(f, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := s.Image.ImageConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := encode.ImageConfig{
			Delay:       500 * time.Millisecond,
			LoopForever: true,
			UnifyCanvas: true,
			Background:  color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			MaxWidth:    300,
			Palette: palette.Spec{
				Colors:  256,
				Methods: []palette.Method{palette.Octree},
			},
			Dither: quantize.Diffusion,
		}
		if !cmp.Equal(want, got) {
			t.Errorf("unexpected image config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
		}
	})

	t.Run("builtin_preset", func(t *testing.T) {
		s, err := Resolve(f, "insta")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := s.Video.VideoConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := encode.VideoConfig{
			FPS:         10,
			Width:       540,
			Colors:      96,
			Dither:      quantize.None,
			LoopForever: true,
			PadColor:    "#f6f6f6",
			StatsMode:   "full",
		}
		if !cmp.Equal(want, got) {
			t.Errorf("unexpected video config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
		}
	})

	t.Run("user_preset", func(t *testing.T) {
		s, err := Resolve(f, "tiny")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *s.Video.Width != 240 || *s.Video.Colors != 64 || *s.Video.FPS != 12 {
			t.Errorf("unexpected video options: width=%d colors=%d fps=%d", *s.Video.Width, *s.Video.Colors, *s.Video.FPS)
		}
	})

	t.Run("external_preset", func(t *testing.T) {
		s, err := Resolve(nil, "photo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !*s.Image.External {
			t.Error("expected photo preset to use the external pipeline")
		}
		got, err := s.Image.ExternalConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.FilterDither != "sierra2_4a" || got.Width != 900 || got.Colors != 256 {
			t.Errorf("unexpected external config: %+v", got)
		}
		if got.PadColor != "#ffffff" {
			t.Errorf("unexpected pad color: %q", got.PadColor)
		}
	})

	t.Run("unknown_preset", func(t *testing.T) {
		_, err := Resolve(f, "cinema")
		if err == nil {
			t.Error("expected error for unknown preset")
		}
	})

	t.Run("no_aliasing", func(t *testing.T) {
		s, err := Resolve(f, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		*s.Image.Delay = 3
		if *f.Image.Delay != 0.5 {
			t.Errorf("resolved options alias file: delay=%v", *f.Image.Delay)
		}
	})
}

func TestPresetNames(t *testing.T) {
	f := &File{Preset: map[string]*Preset{"tiny": {}, "hq": {}}}
	got := PresetNames(f)
	want := []string{"detail", "hq", "insta", "photo", "tiny", "ultra", "web"}
	if !cmp.Equal(want, got) {
		t.Errorf("unexpected preset names:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestParseColor(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    color.Color
		wantStr string
		wantErr bool
	}{
		{in: "white", want: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, wantStr: "#ffffff"},
		{in: "black", want: color.NRGBA{A: 0xff}, wantStr: "#000000"},
		{in: "grey", want: color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}, wantStr: "#808080"},
		{in: "#f6f6f6", want: color.NRGBA{R: 0xf6, G: 0xf6, B: 0xf6, A: 0xff}, wantStr: "#f6f6f6"},
		{in: "#0A0b0C", want: color.NRGBA{R: 0x0a, G: 0x0b, B: 0x0c, A: 0xff}, wantStr: "#0a0b0c"},
		{in: "#fff", wantErr: true},
		{in: "#gggggg", wantErr: true},
		{in: "chartreuse", wantErr: true},
		{in: "", wantErr: true},
	} {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParseColor(test.in)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if err != nil {
				return
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected color:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
			if s := ColorString(got); s != test.wantStr {
				t.Errorf("unexpected color string: got:%q want:%q", s, test.wantStr)
			}
		})
	}
}
