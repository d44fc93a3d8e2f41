// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package palette

import (
	"errors"
	"image"
	"image/color"
)

// octree is the octree quantizer. Colors are inserted into an eight-level
// tree indexed by successive bits of each channel and the deepest nodes
// are merged into their parents until few enough leaves remain.
type octree struct{}

func (octree) Method() Method { return Octree }

func (octree) Palette(img image.Image, n int) (color.Palette, error) {
	hist := histogram(img, 8)
	if len(hist) == 0 {
		return nil, errors.New("no pixels")
	}
	t := newTree()
	for _, b := range hist {
		t.insert(b)
	}
	for t.leaves > n {
		if !t.reduce() {
			break
		}
	}
	var colors []rgb
	t.root.collect(&colors)
	return toPalette(colors), nil
}

const octreeDepth = 8

type octNode struct {
	children [8]*octNode
	leaf     bool
	sum      [3]int
	n        int
}

func (o *octNode) collect(dst *[]rgb) {
	if o.leaf {
		var c rgb
		for i, s := range o.sum {
			c[i] = uint8((s + o.n/2) / o.n)
		}
		*dst = append(*dst, c)
		return
	}
	for _, c := range o.children {
		if c != nil {
			c.collect(dst)
		}
	}
}

type tree struct {
	root   *octNode
	leaves int
	// levels holds the reducible inner nodes at each depth
	// in insertion order.
	levels [octreeDepth][]*octNode
}

func newTree() *tree {
	return &tree{root: &octNode{}}
}

func childIndex(c rgb, depth int) int {
	shift := 7 - depth
	return int(c[0]>>shift&1)<<2 | int(c[1]>>shift&1)<<1 | int(c[2]>>shift&1)
}

func (t *tree) insert(b bin) {
	node := t.root
	for depth := 0; depth < octreeDepth; depth++ {
		if node.leaf {
			break
		}
		i := childIndex(b.c, depth)
		child := node.children[i]
		if child == nil {
			child = &octNode{}
			if depth == octreeDepth-1 {
				child.leaf = true
				t.leaves++
			} else {
				t.levels[depth+1] = append(t.levels[depth+1], child)
			}
			node.children[i] = child
		}
		node = child
	}
	for i, v := range b.c {
		node.sum[i] += int(v) * b.n
	}
	node.n += b.n
}

// reduce merges the children of the most recently added node at the
// deepest reducible level into that node. It reports whether a merge
// was possible.
func (t *tree) reduce() bool {
	for depth := octreeDepth - 1; depth >= 0; depth-- {
		nodes := t.levels[depth]
		if depth == 0 {
			nodes = []*octNode{t.root}
			if t.root.leaf {
				return false
			}
		}
		if len(nodes) == 0 {
			continue
		}
		node := nodes[len(nodes)-1]
		if depth != 0 {
			t.levels[depth] = nodes[:len(nodes)-1]
		}
		var merged int
		for i, c := range node.children {
			if c == nil {
				continue
			}
			for j, s := range c.sum {
				node.sum[j] += s
			}
			node.n += c.n
			node.children[i] = nil
			merged++
		}
		node.leaf = true
		t.leaves -= merged - 1
		return true
	}
	return false
}
