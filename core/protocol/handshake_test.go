// File: core/protocol/handshake_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAcceptKey(t *testing.T) {
	// RFC 6455 section 1.3 sample
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestNewClientKey(t *testing.T) {
	k, err := NewClientKey()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(k)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestWriteHandshakeRequest(t *testing.T) {
	hdr := http.Header{}
	hdr.Set(HeaderUpgrade, "websocket")
	hdr.Set(HeaderConnection, "Upgrade")
	var buf bytes.Buffer
	require.NoError(t, WriteHandshakeRequest(&buf, "", "example.com", hdr, []byte("12345678")))
	assert.Equal(t,
		"GET / HTTP/1.1\r\nHost: example.com\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n12345678",
		buf.String())
}

func TestParseHandshakeResponse(t *testing.T) {
	resp, err := ParseHandshakeResponse("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: keep-alive, Upgrade")
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.True(t, HeaderContainsToken(resp.Header, HeaderConnection, "upgrade"))
	assert.False(t, HeaderContainsToken(resp.Header, HeaderConnection, "close"))

	_, err = ParseHandshakeResponse("garbage")
	assert.Error(t, err)
}
