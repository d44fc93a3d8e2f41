// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package locked

import (
	"strings"
	"sync"
	"testing"
)

func TestBytesBufferConcurrent(t *testing.T) {
	const (
		writers = 8
		writes  = 100
	)
	var (
		buf BytesBuffer
		wg  sync.WaitGroup
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range writes {
				buf.Write([]byte("x\n"))
			}
		}()
	}
	wg.Wait()
	if got, want := buf.Len(), writers*writes*2; got != want {
		t.Errorf("unexpected length: got:%d want:%d", got, want)
	}
	if got, want := strings.Count(buf.String(), "x\n"), writers*writes; got != want {
		t.Errorf("unexpected line count: got:%d want:%d", got, want)
	}
	b := buf.Bytes()
	b[0] = 'y'
	if buf.String()[0] != 'x' {
		t.Error("Bytes returned an alias of the buffer")
	}
}
