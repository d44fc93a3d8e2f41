// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides configuration file loading, vetting and
// preset resolution.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kortschak/framegif/internal/xdg"
)

// File is a configuration file.
type File struct {
	LogLevel *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	// FFmpeg is the path to the external filter program.
	FFmpeg string `json:"ffmpeg,omitempty" toml:"ffmpeg"`

	Image *Image `json:"image,omitempty" toml:"image"`
	Video *Video `json:"video,omitempty" toml:"video"`

	// Preset holds user presets. A user preset with
	// the same name as a built-in preset replaces it.
	Preset map[string]*Preset `json:"preset,omitempty" toml:"preset"`
}

// Preset is a named set of image and video options.
type Preset struct {
	Image *Image `json:"image,omitempty" toml:"image"`
	Video *Video `json:"video,omitempty" toml:"video"`
}

// Image holds still image encoding options. Nil fields are unset.
type Image struct {
	// Delay is the time each frame is shown in seconds.
	Delay       *float64 `json:"delay,omitempty" toml:"delay"`
	Loop        *bool    `json:"loop,omitempty" toml:"loop"`
	UnifyCanvas *bool    `json:"unify_canvas,omitempty" toml:"unify_canvas"`
	PadSquare   *bool    `json:"pad_square,omitempty" toml:"pad_square"`
	Background  *string  `json:"background,omitempty" toml:"background"`
	MaxWidth    *int     `json:"max_width,omitempty" toml:"max_width"`
	Colors      *int     `json:"colors,omitempty" toml:"colors"`
	Dither      *string  `json:"dither,omitempty" toml:"dither"`
	Methods     []string `json:"methods,omitempty" toml:"methods"`

	// External selects the external filter pipeline.
	External *bool `json:"external,omitempty" toml:"external"`
	// FilterDither is the external dither mode name used
	// when External is set.
	FilterDither *string `json:"filter_dither,omitempty" toml:"filter_dither"`
}

// Video holds video encoding options. Nil fields are unset.
type Video struct {
	FPS        *int    `json:"fps,omitempty" toml:"fps"`
	Width      *int    `json:"width,omitempty" toml:"width"`
	Colors     *int    `json:"colors,omitempty" toml:"colors"`
	Dither     *string `json:"dither,omitempty" toml:"dither"`
	BayerScale *int    `json:"bayer_scale,omitempty" toml:"bayer_scale"`
	Loop       *bool   `json:"loop,omitempty" toml:"loop"`
	PadSquare  *bool   `json:"pad_square,omitempty" toml:"pad_square"`
	PadColor   *string `json:"pad_color,omitempty" toml:"pad_color"`
	StatsMode  *string `json:"stats_mode,omitempty" toml:"stats_mode"`
}

// Unmarshal decodes TOML configuration data and vets it against the
// configuration schema.
func Unmarshal(b []byte) (*File, error) {
	var f File
	err := toml.Unmarshal(b, &f)
	if err != nil {
		return nil, err
	}
	_, err = Vet(&f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Vet validates cfg against the configuration schema, returning a list of
// invalid paths and an error describing the problems found.
func Vet(cfg *File) (paths [][]string, err error) {
	return Validate(schema, cfg)
}

// Name is the name of the application's configuration directory.
const Name = "framegif"

// Load reads the configuration file at path. If path is empty, the first
// framegif/config.toml found in the user and system configuration
// directories is read, and an empty configuration is returned if there
// is none.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		p, err := xdg.Config(filepath.Join(Name, "config.toml"), false)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &File{}, nil
			}
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, err
	}
	f, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// schema is the schema for a valid configuration file.
const schema = `
{
	log_level?: _#log_level
	ffmpeg?:    string
	image?:     _#image
	video?:     _#video
	preset?:    {[string]: _#preset}
}

_#preset: {
	image?: _#image
	video?: _#video
}

_#image: {
	delay?:         number & >0
	loop?:          bool
	unify_canvas?:  bool
	pad_square?:    bool
	background?:    _#color
	max_width?:     int & >=0
	colors?:        int & >=2 & <=256
	dither?:        _#dither
	methods?:       [... "adaptive" | "octree" | "mediancut" | "default"]
	external?:      bool
	filter_dither?: _#filter_dither
}

_#video: {
	fps?:         int & >=1 & <=60
	width?:       int & >=0
	colors?:      64 | 96 | 128 | 160 | 192 | 256
	dither?:      _#dither
	bayer_scale?: int & >=0 & <=5
	loop?:        bool
	pad_square?:  bool
	pad_color?:   _#color
	stats_mode?:  "full" | "diff"
}

_#dither: "none" | "bayer" | "ordered" | "floyd_steinberg" | "floyd" | "fs" | "diffusion"
_#filter_dither: "none" | "bayer" | "floyd_steinberg" | "sierra2" | "sierra2_4a" | "sierra3" | "burkes" | "atkinson" | "heckbert"
_#color: =~"^(?:#[0-9a-fA-F]{6}|black|white|red|green|blue|yellow|magenta|cyan|gr[ae]y)$"

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
`
