// File: protocol/hybi00.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// draft-hixie-76 / hybi-00: key1/key2/key3 challenge handshake, text frames
// delimited by 0x00 and 0xFF, closing handshake 0xFF 0x00.

package protocol

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
	"strconv"

	"github.com/momentics/hioload-wsc/api"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

const (
	hybi00TextType  = 0x00
	hybi00LengthBit = 0x80
)

type hybi00Processor struct{}

// NewHybi00 returns the pre-standard processor.
func NewHybi00() Processor {
	return hybi00Processor{}
}

func (hybi00Processor) Version() api.Version   { return api.VersionHybi00 }
func (hybi00Processor) SupportsBinary() bool   { return false }
func (hybi00Processor) SupportsPingPong() bool { return false }

// CloseCodes are all zero: the pre-standard close carries no status.
func (hybi00Processor) CloseCodes() CloseCodes { return CloseCodes{} }

func (hybi00Processor) NewHandshakeReader() HandshakeReader { return NewHybi00HandshakeReader() }
func (hybi00Processor) NewDataReader() DataReader           { return NewHybi00DataReader() }

func (hybi00Processor) HandshakeRequest(opts HandshakeOptions) (*HandshakeRequest, error) {
	if opts.URL == nil {
		return nil, fmt.Errorf("%w: handshake needs a target url", api.ErrInvalidArgument)
	}
	key1, n1 := newHixieKey()
	key2, n2 := newHixieKey()
	var key3 [8]byte
	if _, err := rand.Read(key3[:]); err != nil {
		return nil, fmt.Errorf("handshake: key3: %w", err)
	}

	hdr := baseHeaders(opts)
	hdr.Set(core.HeaderUpgrade, "WebSocket")
	hdr.Set(core.HeaderConnection, "Upgrade")
	hdr.Set(core.HeaderSecWebSocketKey1, key1)
	hdr.Set(core.HeaderSecWebSocketKey2, key2)
	hdr.Set(core.HeaderOrigin, originFor(opts))

	var buf bytes.Buffer
	if err := core.WriteHandshakeRequest(&buf, opts.URL.RequestURI(), opts.URL.Host, hdr, key3[:]); err != nil {
		return nil, err
	}
	return &HandshakeRequest{Payload: buf.Bytes(), challenge: HixieChallenge(n1, n2, key3)}, nil
}

func (hybi00Processor) VerifyHandshake(req *HandshakeRequest, msg *Message) error {
	if _, err := checkUpgradeResponse(msg); err != nil {
		return err
	}
	if !bytes.Equal(msg.Data, req.challenge) {
		return ErrChallengeMismatch
	}
	return nil
}

func (hybi00Processor) EncodeText(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)+2)
	out = append(out, hybi00TextType)
	out = append(out, s...)
	return append(out, hybi00FrameEnd), nil
}

func (hybi00Processor) EncodeClose(int, string) ([]byte, error) {
	return []byte{hybi00CloseType, 0x00}, nil
}

func (hybi00Processor) EncodeBinary([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: binary frames on hybi00", api.ErrNotSupported)
}

func (hybi00Processor) EncodeBinarySegments([][]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: binary frames on hybi00", api.ErrNotSupported)
}

func (hybi00Processor) EncodePing(string) ([]byte, error) {
	return nil, fmt.Errorf("%w: ping on hybi00", api.ErrNotSupported)
}

func (hybi00Processor) EncodePong(string) ([]byte, error) {
	return nil, fmt.Errorf("%w: pong on hybi00", api.ErrNotSupported)
}

// EncodeLengthPrefixed builds a high-bit hybi-00 frame: typ with the high
// bit forced, the payload length in base-128 digits most significant first,
// then p.
func EncodeLengthPrefixed(typ byte, p []byte) []byte {
	var digits [10]byte
	i := len(digits)
	n := uint64(len(p))
	for {
		i--
		digits[i] = byte(n & 0x7F)
		n >>= 7
		if n == 0 {
			break
		}
	}
	for j := i; j < len(digits)-1; j++ {
		digits[j] |= 0x80
	}
	out := make([]byte, 0, 1+len(digits)-i+len(p))
	out = append(out, typ|hybi00LengthBit)
	out = append(out, digits[i:]...)
	return append(out, p...)
}

// HixieChallenge computes the 16-byte response a hybi-00 server must send:
// MD5 over both key numbers as big-endian uint32 followed by key3.
func HixieChallenge(n1, n2 uint32, key3 [8]byte) []byte {
	var src [16]byte
	binary.BigEndian.PutUint32(src[0:], n1)
	binary.BigEndian.PutUint32(src[4:], n2)
	copy(src[8:], key3[:])
	sum := md5.Sum(src[:])
	return sum[:]
}

// newHixieKey returns a Sec-WebSocket-Key1/2 value and the number the
// server recovers from it: the digits divided by the count of spaces.
func newHixieKey() (string, uint32) {
	spaces := mrand.IntN(12) + 1
	number := mrand.Uint32N(uint32(0xFFFFFFFF / uint32(spaces)))
	key := []byte(strconv.FormatUint(uint64(number)*uint64(spaces), 10))

	for range mrand.IntN(12) + 1 {
		key = insertAt(key, mrand.IntN(len(key)+1), randomKeyChar())
	}
	for range spaces {
		key = insertAt(key, mrand.IntN(len(key)-1)+1, ' ')
	}
	return string(key), number
}

// randomKeyChar picks a filler from U+0021..U+002F or U+003A..U+007E.
func randomKeyChar() byte {
	if mrand.IntN(2) == 0 {
		return byte(0x21 + mrand.IntN(0x2F-0x21+1))
	}
	return byte(0x3A + mrand.IntN(0x7E-0x3A+1))
}

func insertAt(b []byte, i int, c byte) []byte {
	b = append(b, 0)
	copy(b[i+1:], b[i:])
	b[i] = c
	return b
}

// ParseHixieKey recovers the number encoded in a Sec-WebSocket-Key1/2 value.
func ParseHixieKey(key string) (uint32, error) {
	var digits uint64
	spaces := 0
	for i := 0; i < len(key); i++ {
		switch c := key[i]; {
		case c >= '0' && c <= '9':
			digits = digits*10 + uint64(c-'0')
		case c == ' ':
			spaces++
		}
	}
	if spaces == 0 || digits%uint64(spaces) != 0 {
		return 0, fmt.Errorf("%w: malformed key %q", ErrChallengeMismatch, key)
	}
	return uint32(digits / uint64(spaces)), nil
}
