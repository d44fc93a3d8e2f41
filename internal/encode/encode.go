// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package encode provides the request level API for encoding animated GIFs
// from still images or video.
//
// Still images are encoded in process: frames are normalized, a single
// palette is learned from a sample of the frames, each frame is quantized
// against that palette and the results are assembled. Video, and still
// images when requested, are encoded by an external two-pass filter
// pipeline.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/kortschak/framegif/internal/animation"
	"github.com/kortschak/framegif/internal/filter"
	"github.com/kortschak/framegif/internal/frame"
	"github.com/kortschak/framegif/internal/palette"
	"github.com/kortschak/framegif/internal/quantize"
)

// Encoder encodes animated GIFs.
type Encoder struct {
	// Palette builds the shared palette for in-process
	// encoding. If nil, the built-in strategies are used.
	Palette *palette.Builder

	// Filter runs external encoding jobs. If nil, a
	// default pipeline is used.
	Filter *filter.Pipeline

	Log *slog.Logger
}

// FromImages encodes the items as an animation in the order given. At
// least animation.MinFrames items are required. The first item that
// cannot be decoded aborts the encoding.
func (e *Encoder) FromImages(items []frame.Item, cfg ImageConfig) (*animation.Animation, error) {
	ctx := context.Background()
	log := e.log()
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	err = animation.CheckCount(len(items))
	if err != nil {
		return nil, err
	}

	seq, err := frame.NormalizeAll(items, frame.Options{
		Background: cfg.Background,
		MaxWidth:   cfg.MaxWidth,
	})
	if err != nil {
		return nil, err
	}
	err = animation.CheckCount(len(seq))
	if err != nil {
		return nil, err
	}
	if cfg.UnifyCanvas {
		seq = frame.UnifyCanvas(seq, cfg.Background)
	}
	if cfg.PadSquare {
		seq = frame.PadSquare(seq, cfg.Background)
	}
	if _, err := seq.Bounds(); err != nil {
		log.LogAttrs(ctx, slog.LevelDebug, "fit frames", slog.Any("reason", err))
		seq = frame.Fit(seq)
	}

	builder := e.Palette
	if builder == nil {
		builder = palette.NewBuilder(log)
	}
	pal, err := builder.Build(seq.Images(), cfg.Palette)
	if err != nil {
		return nil, err
	}

	indexed := make([]*image.Paletted, len(seq))
	for i, f := range seq {
		indexed[i], err = quantize.Quantize(f.Image, pal, cfg.Dither)
		if err != nil {
			return nil, fmt.Errorf("quantize frame %d (%s): %w", i, f.Name, err)
		}
	}
	anim, err := animation.Assemble(indexed, animation.Options{
		Delay:       cfg.Delay,
		LoopForever: cfg.LoopForever,
	})
	if err != nil {
		return nil, err
	}
	log.LogAttrs(ctx, slog.LevelInfo, "encoded images",
		slog.Int("frames", anim.Frames),
		slog.Int("width", anim.Width),
		slog.Int("height", anim.Height),
		slog.Int("colors", len(pal)),
		slog.Int("delay_ms", DelayMillis(cfg.Delay)),
		slog.String("dither", cfg.Dither.String()),
		slog.Int("bytes", anim.Size()),
	)
	return anim, nil
}

// FromVideo encodes the video as an animation using the external filter
// pipeline. The configuration is validated before any external process
// is started.
func (e *Encoder) FromVideo(ctx context.Context, video []byte, cfg VideoConfig) ([]byte, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if len(video) == 0 {
		return nil, &ConfigError{Field: "video", Reason: "no data"}
	}
	const input = "input"
	return e.filter().Encode(ctx, cfg.job(input), filter.File{Name: input, Data: video})
}

// FromImagesExternal encodes the items as an animation in the order given
// using the external filter pipeline. At least animation.MinFrames items
// are required. Items are decoded and stored as a numbered PNG sequence
// for the external pipeline.
func (e *Encoder) FromImagesExternal(ctx context.Context, items []frame.Item, cfg ExternalImageConfig) ([]byte, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	err = animation.CheckCount(len(items))
	if err != nil {
		return nil, err
	}
	files := make([]filter.File, len(items))
	for i, it := range items {
		img, _, err := frame.Decode(it.Data)
		if err != nil {
			return nil, &frame.DecodeError{Index: i, Name: it.Name, Err: err}
		}
		var buf bytes.Buffer
		err = png.Encode(&buf, img)
		if err != nil {
			return nil, &frame.DecodeError{Index: i, Name: it.Name, Err: err}
		}
		files[i] = filter.File{Name: fmt.Sprintf("%04d.png", i), Data: buf.Bytes()}
	}
	job := cfg.job("%04d.png")
	if job.FrameRate == "" {
		return nil, &ConfigError{Field: "delay", Reason: "no frame rate for interval"}
	}
	return e.filter().Encode(ctx, job, files...)
}

func (e *Encoder) filter() *filter.Pipeline {
	if e.Filter != nil {
		return e.Filter
	}
	return &filter.Pipeline{Log: e.Log}
}

func (e *Encoder) log() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Log
}
