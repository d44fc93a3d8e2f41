// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor returns the color for a color name or a #rrggbb web color.
func ParseColor(val string) (color.Color, error) {
	if strings.HasPrefix(val, "#") {
		return webColor(val)
	}
	col, ok := namedColor[val]
	if !ok {
		return nil, fmt.Errorf("invalid color name: %q", val)
	}
	return col, nil
}

var namedColor = map[string]color.NRGBA{
	"black":   {R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	"white":   {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"red":     {R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	"green":   {R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	"blue":    {R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	"yellow":  {R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	"magenta": {R: 0xff, G: 0x00, B: 0xff, A: 0xff},
	"cyan":    {R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	"gray":    {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"grey":    {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
}

func webColor(val string) (color.Color, error) {
	hex, ok := strings.CutPrefix(val, "#")
	if !ok || len(hex) != 6 {
		return nil, fmt.Errorf("invalid web color: %q", val)
	}
	c, err := strconv.ParseUint(hex, 16, 24)
	if err != nil {
		return nil, fmt.Errorf("invalid web color: %q: %w", val, err)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(c))
	return color.NRGBA{R: b[1], G: b[2], B: b[3], A: 0xff}, nil
}

// ColorString returns c as an opaque #rrggbb web color.
func ColorString(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}
