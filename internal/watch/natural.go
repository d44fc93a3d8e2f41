// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package watch

import (
	"strings"

	"github.com/maruel/natural"
)

// NaturalLess returns whether a sorts before b when runs of decimal digits
// are compared by numeric value and other text is compared without regard
// to case, so that "frame2.png" sorts before "frame10.png". Names that
// differ only in case are ordered bytewise.
func NaturalLess(a, b string) bool {
	x, y := strings.ToLower(a), strings.ToLower(b)
	switch {
	case natural.Less(x, y):
		return true
	case natural.Less(y, x):
		return false
	default:
		return a < b
	}
}
