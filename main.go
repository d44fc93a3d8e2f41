// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The framegif command encodes animated GIFs from still images or video.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/kortschak/framegif/internal/animation"
	"github.com/kortschak/framegif/internal/config"
	"github.com/kortschak/framegif/internal/encode"
	"github.com/kortschak/framegif/internal/filter"
	"github.com/kortschak/framegif/internal/frame"
	"github.com/kortschak/framegif/internal/slogext"
	"github.com/kortschak/framegif/internal/version"
	"github.com/kortschak/framegif/internal/watch"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	cfgPath := flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/framegif/config.toml)")
	v := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return invocationError
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return invocationError
	}

	var level slog.LevelVar
	err = level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	if cfg.LogLevel != nil && !isSet(flag.CommandLine, "log") {
		level.Set(*cfg.LogLevel)
	}
	addSource := slogext.NewAtomicBool(*lines)
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "images":
		return imagesCmd(ctx, args, cfg, log)
	case "video":
		return videoCmd(ctx, args, cfg, log)
	case "watch":
		return watchCmd(ctx, args, cfg, log)
	case "inspect":
		return inspectCmd(args)
	case "presets":
		return presetsCmd(args, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", cmd)
		flag.Usage()
		return invocationError
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage of %s:
  %[1]s [options] images -o out.gif [image options] file...|dir
  %[1]s [options] video -o out.gif [video options] file
  %[1]s [options] watch -o out.gif [image options] dir
  %[1]s [options] inspect [-frames dir] file.gif
  %[1]s [options] presets

Options:
`, filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func imagesCmd(ctx context.Context, args []string, cfg *config.File, log *slog.Logger) int {
	fs := flag.NewFlagSet("images", flag.ContinueOnError)
	out := fs.String("o", "", "output GIF path")
	preset := fs.String("preset", "", "named preset")
	ffmpeg := fs.String("ffmpeg", "", "external filter program (default ffmpeg)")
	var opts imageFlags
	opts.register(fs)
	err := fs.Parse(args)
	if err != nil {
		return invocationError
	}
	if *out == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: images -o out.gif [options] file...|dir")
		return invocationError
	}
	settings, err := config.Resolve(cfg, *preset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	err = opts.check(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	opts.apply(fs, settings.Image)

	paths, err := inputs(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	items, err := readItems(paths)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	opts.timing(fs, settings.Image, len(items))
	enc := newEncoder(cfg, *ffmpeg, log)
	data, err := encodeImages(ctx, enc, items, settings.Image)
	if err != nil {
		return fail(ctx, log, err)
	}
	err = writeOutput(ctx, *out, data)
	if err != nil {
		return fail(ctx, log, err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "wrote animation", slog.String("path", *out), slog.Int("frames", len(items)), slog.Int("bytes", len(data)))
	return success
}

func videoCmd(ctx context.Context, args []string, cfg *config.File, log *slog.Logger) int {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	out := fs.String("o", "", "output GIF path")
	preset := fs.String("preset", "", "named preset")
	ffmpeg := fs.String("ffmpeg", "", "external filter program (default ffmpeg)")
	fps := fs.Int("fps", 0, "output frame rate")
	width := fs.Int("width", 0, "output width (0 retains source width)")
	colors := fs.Int("colors", 0, "palette size (64, 96, 128, 160, 192 or 256)")
	dither := fs.String("dither", "", "dither mode (none, bayer or floyd_steinberg)")
	bayer := fs.Int("bayer", 0, "bayer pattern scale")
	start := fs.Float64("start", 0, "clip start in seconds")
	end := fs.Float64("end", 0, "clip end in seconds (0 runs to the end of the source)")
	square := fs.Bool("square", false, "pad frames to a square")
	pad := fs.String("pad", "", "pad color")
	stats := fs.String("stats", "", "palette statistics mode (full or diff)")
	loop := fs.Bool("loop", false, "loop forever")
	err := fs.Parse(args)
	if err != nil {
		return invocationError
	}
	if *out == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: video -o out.gif [options] file")
		return invocationError
	}
	settings, err := config.Resolve(cfg, *preset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	o := settings.Video
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			o.FPS = fps
		case "width":
			o.Width = width
		case "colors":
			o.Colors = colors
		case "dither":
			o.Dither = dither
		case "bayer":
			o.BayerScale = bayer
		case "square":
			o.PadSquare = square
		case "pad":
			o.PadColor = pad
		case "stats":
			o.StatsMode = stats
		case "loop":
			o.Loop = loop
		}
	})
	vcfg, err := o.VideoConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	if isSet(fs, "start") || isSet(fs, "end") {
		vcfg.Clip = &encode.Clip{Start: *start, End: *end}
	}

	video, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	enc := newEncoder(cfg, *ffmpeg, log)
	data, err := enc.FromVideo(ctx, video, vcfg)
	if err != nil {
		return fail(ctx, log, err)
	}
	err = writeOutput(ctx, *out, data)
	if err != nil {
		return fail(ctx, log, err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "wrote animation", slog.String("path", *out), slog.Int("bytes", len(data)))
	return success
}

func watchCmd(ctx context.Context, args []string, cfg *config.File, log *slog.Logger) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	out := fs.String("o", "", "output GIF path")
	preset := fs.String("preset", "", "named preset")
	ffmpeg := fs.String("ffmpeg", "", "external filter program (default ffmpeg)")
	debounce := fs.Duration("debounce", watch.FileDebounce, "time to wait for changes to settle")
	var opts imageFlags
	opts.register(fs)
	err := fs.Parse(args)
	if err != nil {
		return invocationError
	}
	if *out == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: watch -o out.gif [options] dir")
		return invocationError
	}
	settings, err := config.Resolve(cfg, *preset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	err = opts.check(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	opts.apply(fs, settings.Image)

	changes := make(chan watch.Change)
	w, err := watch.NewWatcher(ctx, fs.Arg(0), changes, *debounce, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	defer w.Close()

	enc := newEncoder(cfg, *ffmpeg, log)
	log.LogAttrs(ctx, slog.LevelInfo, "watching", slog.String("dir", fs.Arg(0)))
	for {
		select {
		case <-ctx.Done():
			return success
		case c := <-changes:
			if c.Err != nil {
				log.LogAttrs(ctx, slog.LevelWarn, "watch", slog.Any("error", c.Err))
				continue
			}
			if len(c.Frames) < animation.MinFrames {
				log.LogAttrs(ctx, slog.LevelInfo, "waiting for frames", slog.Int("frames", len(c.Frames)))
				continue
			}
			items, err := readItems(c.Frames)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelWarn, "read frames", slog.Any("error", err))
				continue
			}
			opts.timing(fs, settings.Image, len(items))
			data, err := encodeImages(ctx, enc, items, settings.Image)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "encode", slog.Any("error", err))
				continue
			}
			err = writeOutput(ctx, *out, data)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "write", slog.Any("error", err))
				continue
			}
			log.LogAttrs(ctx, slog.LevelInfo, "wrote animation", slog.String("path", *out), slog.Int("frames", len(items)), slog.Int("bytes", len(data)))
		}
	}
}

func inspectCmd(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	frames := fs.String("frames", "", "directory to write composited frames to as PNG")
	err := fs.Parse(args)
	if err != nil {
		return invocationError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect [-frames dir] file.gif")
		return invocationError
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	defer f.Close()
	g, err := animation.Decode(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	printInfo(os.Stdout, animation.Describe(g))

	if *frames == "" {
		return success
	}
	err = os.MkdirAll(*frames, 0o755)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	err = animation.Render(g, func(i int, img image.Image) error {
		var buf bytes.Buffer
		err := png.Encode(&buf, img)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(*frames, fmt.Sprintf("frame%04d.png", i)), buf.Bytes(), 0o644)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	return success
}

func printInfo(w io.Writer, info *animation.Info) {
	fmt.Fprintf(w, "frames: %d\n", info.Frames)
	fmt.Fprintf(w, "size: %dx%d\n", info.Width, info.Height)
	fmt.Fprintf(w, "colors: %d\n", info.Colors)
	switch {
	case info.LoopForever():
		fmt.Fprintln(w, "loop: forever")
	case info.LoopCount < 0:
		fmt.Fprintln(w, "loop: once")
	default:
		fmt.Fprintf(w, "loop: %d\n", info.LoopCount)
	}
	fmt.Fprintf(w, "duration: %v\n", info.Duration())
	delays := make([]string, len(info.Delays))
	for i, d := range info.Delays {
		delays[i] = d.String()
	}
	fmt.Fprintf(w, "delays: %s\n", strings.Join(delays, " "))
}

func presetsCmd(args []string, cfg *config.File) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: presets")
		return invocationError
	}
	for _, name := range config.PresetNames(cfg) {
		s, err := config.Resolve(cfg, name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		fmt.Printf("%s:\timage width=%d colors=%d dither=%s external=%t\tvideo width=%d fps=%d colors=%d dither=%s\n",
			name,
			*s.Image.MaxWidth, *s.Image.Colors, imageDither(s.Image), *s.Image.External,
			*s.Video.Width, *s.Video.FPS, *s.Video.Colors, *s.Video.Dither,
		)
	}
	return success
}

func imageDither(o *config.Image) string {
	if *o.External && *o.FilterDither != "" {
		return *o.FilterDither
	}
	return *o.Dither
}

// imageFlags holds the command line still image options shared by the
// images and watch commands.
type imageFlags struct {
	delay        time.Duration
	fps          int
	duration     time.Duration
	loop         bool
	unify        bool
	square       bool
	bg           string
	width        int
	colors       int
	dither       string
	methods      string
	external     bool
	filterDither string
}

func (f *imageFlags) register(fs *flag.FlagSet) {
	fs.DurationVar(&f.delay, "delay", 0, "time each frame is shown")
	fs.IntVar(&f.fps, "fps", 0, "frame rate (alternative to -delay)")
	fs.DurationVar(&f.duration, "duration", 0, "total animation duration (alternative to -delay)")
	fs.BoolVar(&f.loop, "loop", false, "loop forever")
	fs.BoolVar(&f.unify, "unify", false, "center frames on a shared canvas")
	fs.BoolVar(&f.square, "square", false, "pad frames to a square")
	fs.StringVar(&f.bg, "bg", "", "background color")
	fs.IntVar(&f.width, "width", 0, "maximum frame width (0 retains decoded width)")
	fs.IntVar(&f.colors, "colors", 0, "maximum palette size")
	fs.StringVar(&f.dither, "dither", "", "dither mode (none, bayer or floyd_steinberg)")
	fs.StringVar(&f.methods, "methods", "", "comma-separated quantization methods (adaptive, octree, mediancut or default)")
	fs.BoolVar(&f.external, "external", false, "encode with the external filter pipeline")
	fs.StringVar(&f.filterDither, "filter_dither", "", "external filter dither mode name")
}

// apply sets the fields of dst corresponding to flags set in fs.
func (f *imageFlags) apply(fs *flag.FlagSet, dst *config.Image) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "delay":
			dst.Delay = ptr(f.delay.Seconds())
		case "loop":
			dst.Loop = ptr(f.loop)
		case "unify":
			dst.UnifyCanvas = ptr(f.unify)
		case "square":
			dst.PadSquare = ptr(f.square)
		case "bg":
			dst.Background = ptr(f.bg)
		case "width":
			dst.MaxWidth = ptr(f.width)
		case "colors":
			dst.Colors = ptr(f.colors)
		case "dither":
			dst.Dither = ptr(f.dither)
		case "methods":
			dst.Methods = []string{f.methods}
		case "external":
			dst.External = ptr(f.external)
		case "filter_dither":
			dst.FilterDither = ptr(f.filterDither)
		}
	})
}

// check returns an error if more than one timing option is set in fs or
// a timing option is out of range.
func (f *imageFlags) check(fs *flag.FlagSet) error {
	var timing []string
	for _, name := range []string{"delay", "fps", "duration"} {
		if isSet(fs, name) {
			timing = append(timing, "-"+name)
		}
	}
	if len(timing) > 1 {
		return fmt.Errorf("only one of -delay, -fps or -duration may be set: have %s", strings.Join(timing, " "))
	}
	switch {
	case isSet(fs, "fps") && (f.fps < 1 || f.fps > 60):
		return fmt.Errorf("-fps %d not in [1,60]", f.fps)
	case isSet(fs, "duration") && f.duration <= 0:
		return fmt.Errorf("-duration %v not positive", f.duration)
	}
	return nil
}

// timing sets the frame delay of dst for an animation of the given number
// of frames when a frame rate or total duration was requested in fs.
func (f *imageFlags) timing(fs *flag.FlagSet, dst *config.Image, frames int) {
	fps := f.fps
	switch {
	case isSet(fs, "fps"):
	case isSet(fs, "duration"):
		fps = encode.FPSForDuration(frames, f.duration.Seconds())
	default:
		return
	}
	dst.Delay = ptr(1 / float64(fps))
}

func ptr[T any](v T) *T { return &v }

func isSet(fs *flag.FlagSet, name string) bool {
	var set bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// inputs returns the frame paths for the command arguments. A single
// directory argument is expanded to the frames it holds in natural order.
func inputs(args []string) ([]string, error) {
	if len(args) == 1 {
		fi, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if fi.IsDir() {
			return watch.Frames(args[0])
		}
	}
	return args, nil
}

func readItems(paths []string) ([]frame.Item, error) {
	items := make([]frame.Item, len(paths))
	for i, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		items[i] = frame.Item{Name: filepath.Base(p), Data: b}
	}
	return items, nil
}

func newEncoder(cfg *config.File, path string, log *slog.Logger) *encode.Encoder {
	if path == "" {
		path = cfg.FFmpeg
	}
	return &encode.Encoder{
		Filter: &filter.Pipeline{
			Path: path,
			Log:  log.With(slog.String("component", "filter")),
		},
		Log: log.With(slog.String("component", "encode")),
	}
}

func encodeImages(ctx context.Context, enc *encode.Encoder, items []frame.Item, o *config.Image) ([]byte, error) {
	if *o.External {
		cfg, err := o.ExternalConfig()
		if err != nil {
			return nil, err
		}
		return enc.FromImagesExternal(ctx, items, cfg)
	}
	cfg, err := o.ImageConfig()
	if err != nil {
		return nil, err
	}
	anim, err := enc.FromImages(items, cfg)
	if err != nil {
		return nil, err
	}
	return anim.Data, nil
}

// writeOutput writes data to path while holding an advisory lock on
// path.lock. The output is replaced atomically.
func writeOutput(ctx context.Context, path string, data []byte) error {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not lock %s", path)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	err = f.Close()
	if err != nil {
		os.Remove(f.Name())
		return err
	}
	err = os.Chmod(f.Name(), 0o644)
	if err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

// fail logs err and returns the exit status for it.
func fail(ctx context.Context, log *slog.Logger, err error) int {
	log.LogAttrs(ctx, slog.LevelError, "failed", slog.Any("error", err))
	fmt.Fprintln(os.Stderr, err)
	var cfgErr *encode.ConfigError
	if errors.As(err, &cfgErr) {
		return invocationError
	}
	return internalError
}
