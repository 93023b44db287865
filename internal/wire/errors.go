package wire

import "errors"

// ErrUnsupportedProtocol is returned when a peer's wire-protocol
// version cannot be interpreted by this build.
var ErrUnsupportedProtocol = errors.New("wire: protocol version not supported")
