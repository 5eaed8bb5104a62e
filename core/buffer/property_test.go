// File: core/buffer/property_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"bytes"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

// pieces splits p at drawn cut points.
func pieces(t *rapid.T, p []byte) [][]byte {
	var out [][]byte
	for len(p) > 0 {
		n := rapid.IntRange(1, len(p)).Draw(t, "piece")
		out = append(out, p[:n])
		p = p[n:]
	}
	return out
}

func TestProperty_MaskIsInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "src")
		key := [4]byte(rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "key"))
		orig := bytes.Clone(src)

		b := NewChunked()
		for _, p := range pieces(t, src) {
			b.Append(p, 0, len(p), false)
		}
		start := rapid.IntRange(0, len(src)-1).Draw(t, "start")
		n := len(src) - start

		if err := b.ApplyMask(key, start, n); err != nil {
			t.Fatal(err)
		}
		if err := b.ApplyMask(key, start, n); err != nil {
			t.Fatal(err)
		}
		got, err := b.Flatten(0, b.Len())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(orig, got); diff != "" {
			t.Fatalf("mask twice changed bytes (-want +got):\n%s", diff)
		}
		if !bytes.Equal(orig, src) {
			t.Fatal("borrowed source was written")
		}
	})
}

func TestProperty_SearchMatchesIndex(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		alphabet := rapid.SampledFrom([]byte("\r\na"))
		stream := rapid.SliceOfN(alphabet, 0, 64).Draw(t, "stream")
		want := bytes.Index(stream, crlf2)
		if want >= 0 {
			want += len(crlf2) - 1
		}

		b := NewChunked()
		s := NewSearchState(crlf2)
		got := -1
		for _, p := range pieces(t, stream) {
			b.Append(p, 0, len(p), false)
			if got = b.SearchLast(s); got >= 0 {
				break
			}
		}
		if got != want {
			t.Fatalf("SearchLast = %d, bytes.Index gives %d", got, want)
		}
	})
}

func TestProperty_DecodeUTF8AcrossChunks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		if !utf8.ValidString(text) {
			t.Skip("generator produced invalid UTF-8")
		}
		b := NewChunked()
		for _, p := range pieces(t, []byte(text)) {
			b.Append(p, 0, len(p), true)
		}
		got, err := b.DecodeString(0, b.Len())
		if err != nil {
			t.Fatal(err)
		}
		if got != text {
			t.Fatalf("decoded %q, want %q", got, text)
		}
	})
}
