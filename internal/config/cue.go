// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/gocode/gocodec"
	"golang.org/x/exp/constraints"
)

// Validate checks cfg against the provided CUE schema. If cfg is not valid,
// Validate returns the sorted set of offending paths and a CUE errors.Error
// describing the problems.
func Validate(schema string, cfg any) (paths [][]string, err error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schema)
	if v.Err() != nil {
		return nil, fmt.Errorf("invalid schema: %w", v.Err())
	}

	w, err := gocodec.New(ctx, nil).Decode(cfg)
	if err != nil {
		return nil, err
	}

	u := v.Unify(w)
	err = u.Validate(cue.Concrete(true), cue.Final())
	errs := cerrors.Errors(err)
	if len(errs) == 0 {
		return nil, nil
	}
	for _, e := range errs {
		if p := cerrors.Path(e); p != nil {
			paths = append(paths, p)
		}
	}
	err = cerrors.Append(
		cerrors.Promote(err, ""),
		cerrors.Promote(fmt.Errorf("%s", u), "not concrete"),
	)
	return unique(paths), err
}

// unique returns paths sorted lexically with repeated elements removed.
func unique(paths [][]string) [][]string {
	if len(paths) < 2 {
		return paths
	}
	slices.SortFunc(paths, compare[string])
	return slices.CompactFunc(paths, func(a, b []string) bool {
		return compare(a, b) == 0
	})
}

// compare compares a and b element-wise, with shorter
// slices ordered before their extensions.
func compare[T constraints.Ordered](a, b []T) int {
	for i := range min(len(a), len(b)) {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return +1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return +1
	}
	return 0
}
