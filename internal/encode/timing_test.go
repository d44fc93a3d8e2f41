// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encode

import (
	"fmt"
	"testing"
	"time"
)

func TestDelayMillis(t *testing.T) {
	for _, test := range []struct {
		d    time.Duration
		want int
	}{
		{d: 0, want: 0},
		{d: 500 * time.Millisecond, want: 500},
		{d: 1500 * time.Microsecond, want: 2},
		{d: 1400 * time.Microsecond, want: 1},
		{d: 2 * time.Second, want: 2000},
	} {
		if got := DelayMillis(test.d); got != test.want {
			t.Errorf("unexpected delay for %v: got:%d want:%d", test.d, got, test.want)
		}
	}
}

func TestFPSForDuration(t *testing.T) {
	for _, test := range []struct {
		frames int
		total  float64
		want   int
	}{
		{frames: 0, total: 5, want: 12},
		{frames: -1, total: 5, want: 12},
		{frames: 30, total: 3, want: 10},
		{frames: 10, total: 0, want: 60},
		{frames: 1, total: 100, want: 1},
		{frames: 500, total: 1, want: 60},
		{frames: 25, total: 2, want: 13},
	} {
		if got := FPSForDuration(test.frames, test.total); got != test.want {
			t.Errorf("unexpected fps for %d frames over %vs: got:%d want:%d", test.frames, test.total, got, test.want)
		}
	}
}

func TestFrameRateForInterval(t *testing.T) {
	for _, test := range []struct {
		seconds float64
		want    string
	}{
		{seconds: 1, want: "1"},
		{seconds: 0.5, want: "2"},
		{seconds: 1.5, want: "2/3"},
		{seconds: 0.3, want: "10/3"},
		{seconds: 0.1, want: "10"},
		{seconds: 0.001, want: "1000"},
		{seconds: 0.0001, want: "10000"},
		{seconds: 1.0 / 3, want: "3"},
		{seconds: 0.7, want: "10/7"},
		{seconds: 0, want: ""},
		{seconds: -1, want: ""},
	} {
		t.Run(fmt.Sprint(test.seconds), func(t *testing.T) {
			if got := FrameRateForInterval(test.seconds); got != test.want {
				t.Errorf("unexpected frame rate: got:%q want:%q", got, test.want)
			}
		})
	}
}
