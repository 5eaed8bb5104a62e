// File: protocol/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-wsc/protocol"
)

type feeder interface {
	Feed(data []byte, offset, length int) (*protocol.Message, int, error)
}

// feedSplit delivers stream in pieces of the given sizes (the remainder
// goes last), re-feeding leftovers the way a session does. Each piece is
// copied into a scratch array that is clobbered after the call, so a reader
// that keeps borrowed bytes without retaining them fails.
func feedSplit(t *testing.T, r feeder, stream []byte, sizes ...int) []*protocol.Message {
	t.Helper()
	var out []*protocol.Message
	scratch := make([]byte, len(stream))
	pos := 0
	deliver := func(n int) {
		copy(scratch, stream[pos:pos+n])
		off, length := 0, n
		for length > 0 {
			msg, left, err := r.Feed(scratch, off, length)
			require.NoError(t, err)
			if msg != nil {
				out = append(out, msg)
			}
			off, length = off+length-left, left
		}
		for i := range scratch[:n] {
			scratch[i] = 0xEE
		}
		pos += n
	}
	for _, n := range sizes {
		if pos+n > len(stream) {
			break
		}
		deliver(n)
	}
	if pos < len(stream) {
		deliver(len(stream) - pos)
	}
	return out
}

func byteSizes(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func randomSizes(seed uint64, total, maxPiece int) []int {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var s []int
	for total > 0 {
		n := min(rng.IntN(maxPiece)+1, total)
		s = append(s, n)
		total -= n
	}
	return s
}
