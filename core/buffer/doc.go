// Package buffer
// Author: momentics <momentics@gmail.com>
//
// Chunked receive buffer for incremental protocol parsing.
//
// A Chunked buffer is an append-only, randomly indexable sequence of byte
// slices borrowed from transport receive buffers. Bytes are copied only when
// a chunk has to outlive the receive call that produced it (copy-on-retain),
// which keeps the cost of resumable parsing proportional to the number of
// bytes received rather than to bytes received times receive calls.
//
// Includes:
//   - O(log n) logical indexing with a single-chunk locality cache
//   - Cross-chunk flatten/copy, in-place XOR masking and tail trimming
//   - Streaming UTF-8 decoding with decoder state carried between chunks
//   - Terminator search over newly appended bytes with partial-match carry
package buffer
