// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package palette

import (
	"errors"
	"image"
	"image/color"
)

// adaptive is a k-means quantizer seeded by median cut. Distances are
// measured in RGB space weighted 2:4:3 to approximate perceived
// difference.
type adaptive struct{}

func (adaptive) Method() Method { return Adaptive }

// adaptiveIterations is the maximum number of refinement passes.
const adaptiveIterations = 8

func (adaptive) Palette(img image.Image, n int) (color.Palette, error) {
	hist := histogram(img, 6)
	if len(hist) == 0 {
		return nil, errors.New("no pixels")
	}
	centers := cut(hist, n)
	if len(centers) <= 1 {
		return toPalette(centers), nil
	}
	assign := make([]int, len(hist))
	for i := range assign {
		assign[i] = -1
	}
	for range adaptiveIterations {
		changed := false
		for i, b := range hist {
			best := nearest(centers, b.c)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][3]int, len(centers))
		counts := make([]int, len(centers))
		for i, b := range hist {
			k := assign[i]
			for j, v := range b.c {
				sums[k][j] += int(v) * b.n
			}
			counts[k] += b.n
		}
		for k, n := range counts {
			if n == 0 {
				// Leave empty clusters where they are.
				continue
			}
			for j, s := range sums[k] {
				centers[k][j] = uint8((s + n/2) / n)
			}
		}
	}
	return toPalette(centers), nil
}

// nearest returns the index of the center closest to c. Ties are
// resolved in favor of the lowest index.
func nearest(centers []rgb, c rgb) int {
	best, bestDist := 0, -1
	for i, p := range centers {
		d := weightedDist(p, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func weightedDist(a, b rgb) int {
	dr := int(a[0]) - int(b[0])
	dg := int(a[1]) - int(b[1])
	db := int(a[2]) - int(b[2])
	return 2*dr*dr + 4*dg*dg + 3*db*db
}
