// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Wire-level WebSocket primitives for the hioload-wsc client engine.
//
// The frame reader is a closed set of resumable steps driven over a
// core/buffer.Chunked. Each step validates only the bytes it owns and either
// chains directly into the next step, reports how many further bytes it
// needs, or flags a protocol violation. Nothing here blocks or allocates per
// received byte; "need more data" is a return value.
//
// Includes:
//   - Frame header view with explicit resolved/unresolved payload length
//   - Header, extended length, mask key and payload steps
//   - Masked frame encoder for client-originated frames
//   - Opening handshake primitives (key generation, accept verification)
package protocol
