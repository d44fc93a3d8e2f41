// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter drives an external two-pass palette filter graph to
// encode animated GIFs from video or image sequences.
//
// The first pass generates a palette image from the filtered frames and
// the second applies it to the same filtered frames. Both passes share
// an identical per-frame filter chain.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/execabs"

	"github.com/kortschak/framegif/internal/locked"
)

// Runner runs external programs.
type Runner interface {
	// Run runs the named program with the provided arguments
	// and returns its combined stdout and stderr.
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// Exec is a Runner that executes programs on the host.
type Exec struct {
	// WaitDelay is the time to wait for I/O to complete
	// after a cancelled process is killed.
	WaitDelay time.Duration

	Log *slog.Logger
}

// Run implements the Runner interface.
func (e Exec) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := execabs.CommandContext(ctx, name, args...)
	cmd.WaitDelay = e.WaitDelay
	var out locked.BytesBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if e.Log != nil {
		e.Log.LogAttrs(ctx, slog.LevelDebug, "run", slog.String("command", cmd.String()))
	}
	err := cmd.Run()
	return out.Bytes(), err
}

// Stage names of an external job.
const (
	StageSetup   = "setup"
	StagePalette = "palette"
	StageApply   = "apply"
)

// ExternalFilterError is returned when an external pass fails or does
// not produce its output.
type ExternalFilterError struct {
	Stage  string
	Args   []string
	Output []byte
	Err    error
}

func (e *ExternalFilterError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "external filter %s stage failed: %v", e.Stage, e.Err)
	if out := strings.TrimSpace(string(e.Output)); out != "" {
		buf.WriteString("\n")
		buf.WriteString(out)
	}
	return buf.String()
}

func (e *ExternalFilterError) Unwrap() error { return e.Err }

// ErrEmptyArtifact is returned when an external pass exits successfully
// without producing a non-empty output file.
var ErrEmptyArtifact = errors.New("missing or empty output artifact")

// File is a named file to place in a job's working directory.
type File struct {
	Name string
	Data []byte
}

// DefaultPath is the external program used when Pipeline.Path is empty.
const DefaultPath = "ffmpeg"

// Pipeline runs two-pass palette encoding jobs.
type Pipeline struct {
	// Runner runs the external program. If nil, Exec is used.
	Runner Runner

	// Path is the external program. If empty, DefaultPath
	// is used.
	Path string

	// TempDir is the parent of job working directories. If
	// empty the system temporary directory is used.
	TempDir string

	Log *slog.Logger
}

// Encode runs job and returns the encoded animation. The files are written
// into a private working directory that is removed before Encode returns.
// A relative job Input is resolved against that directory. Failure of
// either pass is returned as an *ExternalFilterError holding the process
// output. Failed jobs are not retried.
func (p *Pipeline) Encode(ctx context.Context, job Job, files ...File) ([]byte, error) {
	log := p.log()
	dir, err := os.MkdirTemp(p.TempDir, "framegif-*")
	if err != nil {
		return nil, &ExternalFilterError{Stage: StageSetup, Err: err}
	}
	defer func() {
		err := os.RemoveAll(dir)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "remove job dir", slog.String("dir", dir), slog.Any("error", err))
		}
	}()
	log.LogAttrs(ctx, slog.LevelDebug, "job dir", slog.String("dir", dir))

	err = WriteInput(dir, files)
	if err != nil {
		return nil, &ExternalFilterError{Stage: StageSetup, Err: err}
	}
	if job.Input == "" {
		return nil, &ExternalFilterError{Stage: StageSetup, Err: errors.New("no input")}
	}
	if !filepath.IsAbs(job.Input) {
		job.Input = filepath.Join(dir, job.Input)
	}

	palette := filepath.Join(dir, "palette.png")
	args := PaletteArgs(job, palette)
	err = p.run(ctx, StagePalette, args, palette)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(dir, "output.gif")
	args = ApplyArgs(job, palette, out)
	err = p.run(ctx, StageApply, args, out)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(out)
	if err != nil {
		return nil, &ExternalFilterError{Stage: StageApply, Args: args, Err: err}
	}
	log.LogAttrs(ctx, slog.LevelInfo, "encoded", slog.Int("bytes", len(b)))
	return b, nil
}

// run runs one pass and checks that it produced a non-empty artifact.
func (p *Pipeline) run(ctx context.Context, stage string, args []string, artifact string) error {
	runner := p.Runner
	if runner == nil {
		runner = Exec{Log: p.Log}
	}
	path := p.Path
	if path == "" {
		path = DefaultPath
	}
	log := p.log()
	log.LogAttrs(ctx, slog.LevelDebug, "run pass", slog.String("stage", stage), slog.Any("args", args))
	out, err := runner.Run(ctx, path, args)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "pass failed", slog.String("stage", stage), slog.Any("error", err))
		return &ExternalFilterError{Stage: stage, Args: args, Output: out, Err: err}
	}
	fi, err := os.Stat(artifact)
	if err != nil || fi.Size() == 0 {
		err = fmt.Errorf("%s: %w", filepath.Base(artifact), ErrEmptyArtifact)
		log.LogAttrs(ctx, slog.LevelError, "pass failed", slog.String("stage", stage), slog.Any("error", err))
		return &ExternalFilterError{Stage: stage, Args: args, Output: out, Err: err}
	}
	return nil
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Log
}

// WriteInput writes files into dir. File names must be local.
func WriteInput(dir string, files []File) error {
	for _, f := range files {
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("invalid input file name: %q", f.Name)
		}
		err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o600)
		if err != nil {
			return err
		}
	}
	return nil
}
