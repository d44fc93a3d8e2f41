// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation assembles palette-indexed frames into animated GIFs
// and provides inspection and rendering of the result.
//
// Assembled animations share a single global color table, use a uniform
// delay between frames and keep every frame as a full canvas image. No
// inter-frame compaction is performed.
package animation
