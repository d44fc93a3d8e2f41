// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kortschak/framegif/internal/encode"
	"github.com/kortschak/framegif/internal/filter"
	"github.com/kortschak/framegif/internal/palette"
	"github.com/kortschak/framegif/internal/quantize"
)

// DefaultImage returns the default still image options.
func DefaultImage() *Image {
	return &Image{
		Delay:        ptr(1.0),
		Loop:         ptr(true),
		UnifyCanvas:  ptr(true),
		PadSquare:    ptr(false),
		Background:   ptr("white"),
		MaxWidth:     ptr(450),
		Colors:       ptr(256),
		Dither:       ptr("floyd_steinberg"),
		External:     ptr(false),
		FilterDither: ptr(""),
	}
}

// DefaultVideo returns the default video options.
func DefaultVideo() *Video {
	return &Video{
		FPS:        ptr(12),
		Width:      ptr(720),
		Colors:     ptr(128),
		Dither:     ptr("floyd"),
		BayerScale: ptr(0),
		Loop:       ptr(true),
		PadSquare:  ptr(false),
		PadColor:   ptr("white"),
		StatsMode:  ptr("full"),
	}
}

// Presets returns the built-in presets.
func Presets() map[string]*Preset {
	return map[string]*Preset{
		"photo": {Image: &Image{
			Delay:        ptr(1.0 / 12),
			External:     ptr(true),
			MaxWidth:     ptr(900),
			Colors:       ptr(256),
			FilterDither: ptr("sierra2_4a"),
		}},
		"web": {Image: &Image{
			Delay:        ptr(1.0 / 10),
			External:     ptr(true),
			MaxWidth:     ptr(800),
			Colors:       ptr(128),
			Dither:       ptr("floyd_steinberg"),
			FilterDither: ptr(""),
		}},
		"detail": {Image: &Image{
			Delay:        ptr(1.0 / 12),
			External:     ptr(true),
			MaxWidth:     ptr(900),
			Colors:       ptr(256),
			FilterDither: ptr("sierra2_4a"),
		}},

		"ultra": {Video: &Video{Width: ptr(450), FPS: ptr(8), Colors: ptr(64), Dither: ptr("none")}},
		"insta": {Video: &Video{Width: ptr(540), FPS: ptr(10), Colors: ptr(96), Dither: ptr("none")}},
		"hq":    {Video: &Video{Width: ptr(720), FPS: ptr(12), Colors: ptr(128), Dither: ptr("floyd")}},
	}
}

// PresetNames returns the sorted names of the built-in presets and the
// presets defined in f.
func PresetNames(f *File) []string {
	all := Presets()
	if f != nil {
		maps.Copy(all, f.Preset)
	}
	return slices.Sorted(maps.Keys(all))
}

// Settings holds fully resolved options.
type Settings struct {
	Image *Image
	Video *Video
}

// Resolve returns the options obtained by applying, in order, the defaults,
// the [image] and [video] sections of f and the named preset. A preset
// defined in f replaces a built-in preset of the same name. Every field of
// the returned options is set.
func Resolve(f *File, preset string) (Settings, error) {
	if f == nil {
		f = &File{}
	}
	s := Settings{Image: DefaultImage(), Video: DefaultVideo()}
	s.Image.merge(f.Image)
	s.Video.merge(f.Video)
	if preset == "" {
		return s, nil
	}
	p, ok := f.Preset[preset]
	if !ok {
		p, ok = Presets()[preset]
	}
	if !ok {
		return s, fmt.Errorf("unknown preset: %q", preset)
	}
	if p != nil {
		s.Image.merge(p.Image)
		s.Video.merge(p.Video)
	}
	return s, nil
}

// merge sets each field of dst that is set in src.
func (dst *Image) merge(src *Image) {
	if src == nil {
		return
	}
	set(&dst.Delay, src.Delay)
	set(&dst.Loop, src.Loop)
	set(&dst.UnifyCanvas, src.UnifyCanvas)
	set(&dst.PadSquare, src.PadSquare)
	set(&dst.Background, src.Background)
	set(&dst.MaxWidth, src.MaxWidth)
	set(&dst.Colors, src.Colors)
	set(&dst.Dither, src.Dither)
	set(&dst.External, src.External)
	set(&dst.FilterDither, src.FilterDither)
	if src.Methods != nil {
		dst.Methods = slices.Clone(src.Methods)
	}
}

// merge sets each field of dst that is set in src.
func (dst *Video) merge(src *Video) {
	if src == nil {
		return
	}
	set(&dst.FPS, src.FPS)
	set(&dst.Width, src.Width)
	set(&dst.Colors, src.Colors)
	set(&dst.Dither, src.Dither)
	set(&dst.BayerScale, src.BayerScale)
	set(&dst.Loop, src.Loop)
	set(&dst.PadSquare, src.PadSquare)
	set(&dst.PadColor, src.PadColor)
	set(&dst.StatsMode, src.StatsMode)
}

func set[T any](dst **T, src *T) {
	if src != nil {
		*dst = ptr(*src)
	}
}

func ptr[T any](v T) *T { return &v }

// ImageConfig returns the in-process encoding configuration for the
// resolved options.
func (o *Image) ImageConfig() (encode.ImageConfig, error) {
	bg, err := ParseColor(deref(o.Background))
	if err != nil {
		return encode.ImageConfig{}, &encode.ConfigError{Field: "background", Reason: err.Error()}
	}
	dither, err := quantize.ParseDither(deref(o.Dither))
	if err != nil {
		return encode.ImageConfig{}, &encode.ConfigError{Field: "dither", Reason: err.Error()}
	}
	methods, err := o.methods()
	if err != nil {
		return encode.ImageConfig{}, &encode.ConfigError{Field: "methods", Reason: err.Error()}
	}
	return encode.ImageConfig{
		Delay:       seconds(deref(o.Delay)),
		LoopForever: deref(o.Loop),
		UnifyCanvas: deref(o.UnifyCanvas),
		PadSquare:   deref(o.PadSquare),
		Background:  bg,
		MaxWidth:    deref(o.MaxWidth),
		Palette: palette.Spec{
			Colors:  deref(o.Colors),
			Methods: methods,
		},
		Dither: dither,
	}, nil
}

// ExternalConfig returns the external filter encoding configuration for
// the resolved options.
func (o *Image) ExternalConfig() (encode.ExternalImageConfig, error) {
	pad, err := ParseColor(deref(o.Background))
	if err != nil {
		return encode.ExternalImageConfig{}, &encode.ConfigError{Field: "background", Reason: err.Error()}
	}
	dither, err := quantize.ParseDither(deref(o.Dither))
	if err != nil {
		return encode.ExternalImageConfig{}, &encode.ConfigError{Field: "dither", Reason: err.Error()}
	}
	return encode.ExternalImageConfig{
		Interval:     seconds(deref(o.Delay)),
		Width:        deref(o.MaxWidth),
		Colors:       deref(o.Colors),
		Dither:       dither,
		FilterDither: deref(o.FilterDither),
		LoopForever:  deref(o.Loop),
		PadSquare:    deref(o.PadSquare),
		PadColor:     ColorString(pad),
	}, nil
}

func (o *Image) methods() ([]palette.Method, error) {
	var m []palette.Method
	for _, s := range o.Methods {
		p, err := palette.ParseMethods(s)
		if err != nil {
			return nil, err
		}
		m = append(m, p...)
	}
	return m, nil
}

// VideoConfig returns the video encoding configuration for the resolved
// options. The clip window is not part of the options.
func (o *Video) VideoConfig() (encode.VideoConfig, error) {
	pad, err := ParseColor(deref(o.PadColor))
	if err != nil {
		return encode.VideoConfig{}, &encode.ConfigError{Field: "pad_color", Reason: err.Error()}
	}
	dither, err := quantize.ParseDither(deref(o.Dither))
	if err != nil {
		return encode.VideoConfig{}, &encode.ConfigError{Field: "dither", Reason: err.Error()}
	}
	return encode.VideoConfig{
		FPS:         deref(o.FPS),
		Width:       deref(o.Width),
		Colors:      deref(o.Colors),
		Dither:      dither,
		BayerScale:  deref(o.BayerScale),
		LoopForever: deref(o.Loop),
		PadSquare:   deref(o.PadSquare),
		PadColor:    ColorString(pad),
		StatsMode:   filter.StatsMode(deref(o.StatsMode)),
	}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
