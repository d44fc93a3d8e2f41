// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encode

import (
	"math"
	"math/big"
	"strconv"
	"time"
)

// DelayMillis returns d rounded to the nearest millisecond.
func DelayMillis(d time.Duration) int {
	return int(math.Round(float64(d) / float64(time.Millisecond)))
}

// FPSForDuration returns the frame rate that shows frames frames over
// total seconds, clamped to [1,60]. It returns 12 if there are no frames.
func FPSForDuration(frames int, total float64) int {
	if frames <= 0 {
		return 12
	}
	fps := int(math.Round(float64(frames) / max(0.1, total)))
	return min(max(fps, 1), 60)
}

// maxRateDenominator is the largest denominator used for frame rates.
const maxRateDenominator = 1000

// FrameRateForInterval returns the frame rate corresponding to a frame
// interval of seconds as an integer or rational string, for example "2"
// or "2/3". The denominator is at most 1000. It returns the empty string
// if seconds is not positive.
func FrameRateForInterval(seconds float64) string {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return ""
	}
	// Use the shortest decimal representation so that
	// intervals like 0.3 are treated as exactly 3/10.
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(seconds, 'f', -1, 64))
	if !ok {
		return ""
	}
	r.Inv(r)
	r = limitDenominator(r, maxRateDenominator)
	if r.IsInt() {
		return r.Num().String()
	}
	return r.Num().String() + "/" + r.Denom().String()
}

// limitDenominator returns the closest rational to r with a denominator
// no greater than maxDenom.
func limitDenominator(r *big.Rat, maxDenom int64) *big.Rat {
	limit := big.NewInt(maxDenom)
	if r.Denom().Cmp(limit) <= 0 {
		return r
	}
	var (
		p0, q0 = big.NewInt(0), big.NewInt(1)
		p1, q1 = big.NewInt(1), big.NewInt(0)
		n, d   = new(big.Int).Set(r.Num()), new(big.Int).Set(r.Denom())
		a, rem = new(big.Int), new(big.Int)
	)
	for {
		a.QuoRem(n, d, rem)
		q2 := new(big.Int).Mul(a, q1)
		q2.Add(q2, q0)
		if q2.Cmp(limit) > 0 {
			break
		}
		p2 := new(big.Int).Mul(a, p1)
		p2.Add(p2, p0)
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, new(big.Int).Set(rem)
		if d.Sign() == 0 {
			break
		}
	}
	k := new(big.Int).Sub(limit, q0)
	k.Quo(k, q1)
	bound1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	bound2 := new(big.Rat).SetFrac(p1, q1)
	d1 := new(big.Rat).Sub(bound1, r)
	d2 := new(big.Rat).Sub(bound2, r)
	if d2.Abs(d2).Cmp(d1.Abs(d1)) <= 0 {
		return bound2
	}
	return bound1
}
