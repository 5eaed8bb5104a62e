// File: protocol/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-version protocol processors and their selection.

package protocol

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/momentics/hioload-wsc/api"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

// CloseCodes maps abstract close reasons to a version's numeric codes.
type CloseCodes struct {
	NormalClosure       int
	GoingAway           int
	ProtocolError       int
	NotAcceptableData   int
	TooLargeFrame       int
	InvalidUTF8         int
	ViolatePolicy       int
	ExtensionNotMatch   int
	UnexpectedCondition int
	NoStatusCode        int
}

// HandshakeOptions carries what the caller controls in the opening request.
type HandshakeOptions struct {
	URL         *url.URL
	Origin      string
	SubProtocol string
	UserAgent   string
	Headers     http.Header
	Cookies     []*http.Cookie
}

// HandshakeRequest is a serialized opening request plus what the response
// must prove.
type HandshakeRequest struct {
	Payload []byte

	accept    string
	challenge []byte
}

// Processor binds the wire format of one protocol version. Implementations
// are stateless and safe to share between sessions.
type Processor interface {
	Version() api.Version
	SupportsBinary() bool
	SupportsPingPong() bool
	CloseCodes() CloseCodes

	HandshakeRequest(opts HandshakeOptions) (*HandshakeRequest, error)
	VerifyHandshake(req *HandshakeRequest, msg *Message) error
	NewHandshakeReader() HandshakeReader
	NewDataReader() DataReader

	EncodeText(s string) ([]byte, error)
	EncodeBinary(p []byte) ([]byte, error)
	EncodeBinarySegments(segs [][]byte) ([]byte, error)
	EncodeClose(code int, reason string) ([]byte, error)
	EncodePing(payload string) ([]byte, error)
	EncodePong(payload string) ([]byte, error)
}

// ProcessorFactory holds the available processors, highest version first.
type ProcessorFactory struct {
	processors []Processor
}

// NewProcessorFactory builds a factory over ps.
func NewProcessorFactory(ps ...Processor) *ProcessorFactory {
	sorted := slices.Clone(ps)
	slices.SortFunc(sorted, func(a, b Processor) int {
		return int(b.Version()) - int(a.Version())
	})
	return &ProcessorFactory{processors: sorted}
}

// DefaultFactory offers RFC 6455, hybi-10 and hybi-00.
func DefaultFactory() *ProcessorFactory {
	return NewProcessorFactory(NewRFC6455(), NewHybi10(), NewHybi00())
}

// Default returns the highest supported version.
func (f *ProcessorFactory) Default() Processor {
	if len(f.processors) == 0 {
		return nil
	}
	return f.processors[0]
}

// ByVersion returns the processor for v. VersionNone selects the default.
func (f *ProcessorFactory) ByVersion(v api.Version) (Processor, bool) {
	if v == api.VersionNone {
		p := f.Default()
		return p, p != nil
	}
	for _, p := range f.processors {
		if p.Version() == v {
			return p, true
		}
	}
	return nil, false
}

// Preferred picks the highest version present in available.
func (f *ProcessorFactory) Preferred(available []int) (Processor, bool) {
	for _, p := range f.processors {
		if slices.Contains(available, int(p.Version())) {
			return p, true
		}
	}
	return nil, false
}

// Versions lists the supported versions, highest first.
func (f *ProcessorFactory) Versions() []api.Version {
	out := make([]api.Version, len(f.processors))
	for i, p := range f.processors {
		out[i] = p.Version()
	}
	return out
}

// ParseSupportedVersions extracts the Sec-WebSocket-Version list a server
// advertises in a rejected handshake response.
func ParseSupportedVersions(head string) []int {
	resp, err := core.ParseHandshakeResponse(head)
	if err != nil {
		return nil
	}
	var out []int
	for _, v := range resp.Header.Values(core.HeaderSecWebSocketVer) {
		for part := range strings.SplitSeq(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}
