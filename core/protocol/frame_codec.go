// File: core/protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client frame encoder. Every frame a client sends is masked with a fresh
// key; the caller's payload slice is never modified.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewMaskKey returns four random bytes from crypto/rand.
func NewMaskKey() ([4]byte, error) {
	var k [4]byte
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("frame: mask key: %w", err)
	}
	return k, nil
}

// FrameLen returns the encoded size of a frame with the given payload size.
func FrameLen(payloadLen int, masked bool) int {
	n := 2 + payloadLen
	switch {
	case payloadLen > 0xFFFF:
		n += 8
	case payloadLen > MaxControlPayloadLen:
		n += 2
	}
	if masked {
		n += 4
	}
	return n
}

// AppendFrame appends one encoded frame to dst. A nil key produces an
// unmasked frame.
func AppendFrame(dst []byte, fin bool, opcode byte, payload []byte, key *[4]byte) []byte {
	b0 := opcode & OpcodeMsk
	if fin {
		b0 |= FinBit
	}
	var b1 byte
	if key != nil {
		b1 = MaskBit
	}

	plen := len(payload)
	switch {
	case plen <= MaxControlPayloadLen:
		dst = append(dst, b0, b1|byte(plen))
	case plen <= 0xFFFF:
		dst = append(dst, b0, b1|LengthCode16)
		dst = binary.BigEndian.AppendUint16(dst, uint16(plen))
	default:
		dst = append(dst, b0, b1|LengthCode64)
		dst = binary.BigEndian.AppendUint64(dst, uint64(plen))
	}

	if key == nil {
		return append(dst, payload...)
	}
	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	for i := range payload {
		dst[start+i] ^= key[i&3]
	}
	return dst
}

// EncodeMaskedFrame encodes one masked frame with a fresh key.
func EncodeMaskedFrame(fin bool, opcode byte, payload []byte) ([]byte, error) {
	key, err := NewMaskKey()
	if err != nil {
		return nil, err
	}
	return AppendFrame(make([]byte, 0, FrameLen(len(payload), true)), fin, opcode, payload, &key), nil
}

// EncodeClosePayload builds a close frame body: a big-endian status code
// followed by the UTF-8 reason, truncated to fit a control frame.
func EncodeClosePayload(code int, reason string) []byte {
	if len(reason) > MaxCloseReasonLen {
		reason = truncateUTF8(reason, MaxCloseReasonLen)
	}
	p := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	return append(p, reason...)
}

// truncateUTF8 cuts s to at most n bytes without splitting a code point.
func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
