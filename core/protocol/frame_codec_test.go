// File: core/protocol/frame_codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFrame_LengthForms(t *testing.T) {
	for _, n := range []int{0, 125, 126, 0xFFFF, 0x10000} {
		payload := bytes.Repeat([]byte{'p'}, n)
		raw := AppendFrame(nil, true, OpcodeBinary, payload, nil)
		assert.Equal(t, FrameLen(n, false), len(raw), "payload %d", n)

		h := headerOver(raw)
		r := StepHeader.Process(0, h)
		require.Equal(t, Complete, r.Status)
		got, _ := h.PayloadLength()
		assert.Equal(t, int64(n), got)
		out, err := h.Buffer().Flatten(h.PayloadIndex(), n)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	}
}

func TestEncodeMaskedFrame_DoesNotTouchPayload(t *testing.T) {
	payload := []byte("keep me")
	raw, err := EncodeMaskedFrame(false, OpcodeText, payload)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(payload))
	assert.Equal(t, byte(OpcodeText), raw[0], "FIN clear")
	assert.NotZero(t, raw[1]&MaskBit)

	h := headerOver(raw)
	require.Equal(t, Complete, StepHeader.Process(0, h).Status)
	key, _ := h.MaskKey()
	require.NoError(t, h.Buffer().ApplyMask(key, h.PayloadIndex(), len(payload)))
	out, err := h.Buffer().Flatten(h.PayloadIndex(), len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestEncodeClosePayload(t *testing.T) {
	p := EncodeClosePayload(CloseGoingAway, "bye")
	assert.Equal(t, uint16(1001), binary.BigEndian.Uint16(p))
	assert.Equal(t, "bye", string(p[2:]))

	long := string(bytes.Repeat([]byte("é"), 100))
	p = EncodeClosePayload(CloseNormalClosure, long)
	assert.LessOrEqual(t, len(p), MaxControlPayloadLen)
	assert.Equal(t, 122, len(p)-2, "no split code point")
}
