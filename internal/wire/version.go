package wire

import (
	hcversion "github.com/hashicorp/go-version"
)

// ProtocolVersion is the wire protocol version this build speaks and
// advertises through the name service. There is a single live version
// today; the comparison below is what lets a future build accept a
// range of compatible peers without touching call sites.
const ProtocolVersion = "1.0.0"

var currentVersion = hcversion.Must(hcversion.NewVersion(ProtocolVersion))

// CheckVersion reports whether a peer advertising versionStr can
// interoperate with this build. Today that is simply equality; the
// go-version comparison is what would let a future build accept a range
// of compatible versions without rewriting every call site.
func CheckVersion(versionStr string) error {
	peer, err := hcversion.NewVersion(versionStr)
	if err != nil {
		return err
	}
	if !peer.Equal(currentVersion) {
		return ErrUnsupportedProtocol
	}
	return nil
}
