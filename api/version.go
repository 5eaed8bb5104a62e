// File: api/version.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"fmt"
	"strings"
)

// Version identifies a WebSocket wire protocol variant by the number sent in
// Sec-WebSocket-Version. Hybi00 predates that header.
type Version int

const (
	VersionNone    Version = -1
	VersionHybi00  Version = 0
	VersionHybi10  Version = 8
	VersionRFC6455 Version = 13
)

func (v Version) String() string {
	switch v {
	case VersionHybi00:
		return "hybi00"
	case VersionHybi10:
		return "hybi10"
	case VersionRFC6455:
		return "rfc6455"
	case VersionNone:
		return "auto"
	default:
		return fmt.Sprintf("version(%d)", int(v))
	}
}

// ParseVersion accepts a name (rfc6455, hybi10, hybi00, auto) or the numeric
// header value. "auto" and the empty string yield VersionNone.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "none":
		return VersionNone, nil
	case "rfc6455", "13":
		return VersionRFC6455, nil
	case "hybi10", "8":
		return VersionHybi10, nil
	case "hybi00", "hixie76", "0":
		return VersionHybi00, nil
	}
	return VersionNone, fmt.Errorf("%w: unknown websocket version %q", ErrInvalidArgument, s)
}
