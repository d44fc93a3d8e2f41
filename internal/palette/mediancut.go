// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package palette

import (
	"container/heap"
	"errors"
	"image"
	"image/color"
	"slices"

	"github.com/soniakeys/quant/median"
)

// medianCut is the median cut quantizer. Color boxes are repeatedly split
// at the weighted median of their longest side.
type medianCut struct{}

func (medianCut) Method() Method { return MedianCut }

func (medianCut) Palette(img image.Image, n int) (color.Palette, error) {
	hist := histogram(img, 8)
	if len(hist) == 0 {
		return nil, errors.New("no pixels")
	}
	return toPalette(cut(hist, n)), nil
}

// engineDefault is the last-resort quantizer, the median cut quantizer
// of the soniakeys/quant engine. Images with no more than n distinct
// colors are returned exactly.
type engineDefault struct{}

func (engineDefault) Method() Method { return Default }

func (engineDefault) Palette(img image.Image, n int) (color.Palette, error) {
	hist := histogram(img, 8)
	if len(hist) == 0 {
		return nil, errors.New("no pixels")
	}
	if len(hist) <= n {
		colors := make([]rgb, len(hist))
		for i, e := range hist {
			colors[i] = e.c
		}
		return toPalette(colors), nil
	}
	return median.Quantizer(n).Quantize(make(color.Palette, 0, n), img), nil
}

// box is a region of color space holding a set of histogram bins.
type box struct {
	bins     []bin
	min, max rgb
	// index is maintained by the heap.Interface methods.
	index int
	// seq orders boxes of equal size.
	seq int
}

func newBox(bins []bin, seq int) *box {
	b := &box{bins: bins, seq: seq}
	b.shrink()
	return b
}

// shrink sets the box corners to the extent of its bins.
func (b *box) shrink() {
	b.min = b.bins[0].c
	b.max = b.bins[0].c
	for _, e := range b.bins[1:] {
		for j, v := range e.c {
			b.min[j] = min(b.min[j], v)
			b.max[j] = max(b.max[j], v)
		}
	}
}

func (b *box) longestSide() (axis, length int) {
	for i := range b.min {
		if d := int(b.max[i]) - int(b.min[i]); d > length {
			axis, length = i, d
		}
	}
	return axis, length
}

// split divides the box at the weighted median along its longest side.
func (b *box) split(seq int) (*box, *box) {
	axis, _ := b.longestSide()
	slices.SortStableFunc(b.bins, func(x, y bin) int {
		return int(x.c[axis]) - int(y.c[axis])
	})
	var total int
	for _, e := range b.bins {
		total += e.n
	}
	var (
		cum int
		at  = len(b.bins) - 1
	)
	for i, e := range b.bins[:len(b.bins)-1] {
		cum += e.n
		if cum*2 >= total {
			at = i + 1
			break
		}
	}
	return newBox(b.bins[:at], b.seq), newBox(b.bins[at:], seq)
}

// boxQueue is a priority queue of boxes ordered by longest side.
type boxQueue []*box

func (q boxQueue) Len() int { return len(q) }

func (q boxQueue) Less(i, j int) bool {
	_, li := q[i].longestSide()
	_, lj := q[j].longestSide()
	if li != lj {
		return li > lj
	}
	return q[i].seq < q[j].seq
}

func (q boxQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *boxQueue) Push(x any) {
	b := x.(*box)
	b.index = len(*q)
	*q = append(*q, b)
}

func (q *boxQueue) Pop() any {
	old := *q
	n := len(old)
	b := old[n-1]
	b.index = -1
	*q = old[:n-1]
	return b
}

// cut returns at most n colors representing hist.
func cut(hist []bin, n int) []rgb {
	bins := slices.Clone(hist)
	q := &boxQueue{}
	heap.Push(q, newBox(bins, 0))
	var (
		done []*box
		seq  = 1
	)
	for q.Len()+len(done) < n && q.Len() > 0 {
		b := heap.Pop(q).(*box)
		if len(b.bins) < 2 {
			done = append(done, b)
			continue
		}
		lo, hi := b.split(seq)
		seq++
		heap.Push(q, lo)
		heap.Push(q, hi)
	}
	for q.Len() > 0 {
		done = append(done, heap.Pop(q).(*box))
	}
	slices.SortFunc(done, func(a, b *box) int { return a.seq - b.seq })
	colors := make([]rgb, len(done))
	for i, b := range done {
		colors[i] = mean(b.bins)
	}
	return colors
}
