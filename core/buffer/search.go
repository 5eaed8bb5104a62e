// File: core/buffer/search.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// SearchState carries a partial terminator match between successive searches
// so a mark split across chunks is still found.
type SearchState struct {
	Mark    []byte
	Matched int
	fail    []int
	scanned *Chunk
}

// NewSearchState prepares a search for mark.
func NewSearchState(mark []byte) *SearchState {
	s := &SearchState{Mark: mark}
	s.prepare()
	return s
}

// Reset forgets any partial match.
func (s *SearchState) Reset() {
	s.Matched = 0
	s.scanned = nil
}

// prepare builds the prefix function used to fall back on a mismatch.
func (s *SearchState) prepare() {
	if len(s.fail) == len(s.Mark) {
		return
	}
	s.fail = make([]int, len(s.Mark))
	k := 0
	for i := 1; i < len(s.Mark); i++ {
		for k > 0 && s.Mark[i] != s.Mark[k] {
			k = s.fail[k-1]
		}
		if s.Mark[i] == s.Mark[k] {
			k++
		}
		s.fail[i] = k
	}
}

// SearchLast scans only the most recently appended chunk for s.Mark,
// continuing a partial match left by the previous call. It returns the
// logical index of the mark's final byte, or -1 when the mark has not been
// completed yet. On success the partial state is cleared. A chunk is scanned
// once; calling again without appending finds nothing new.
func (b *Chunked) SearchLast(s *SearchState) int {
	if len(s.Mark) == 0 || len(b.chunks) == 0 {
		return -1
	}
	last := b.chunks[len(b.chunks)-1]
	if last == s.scanned {
		return -1
	}
	s.scanned = last
	s.prepare()
	k := s.Matched
	for i, c := range last.Bytes() {
		for k > 0 && c != s.Mark[k] {
			k = s.fail[k-1]
		}
		if c == s.Mark[k] {
			k++
		}
		if k == len(s.Mark) {
			s.Matched = 0
			return last.Start + i
		}
	}
	s.Matched = k
	return -1
}
