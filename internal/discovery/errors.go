package discovery

import "errors"

var (
	// ErrArtifactUnreadable is returned when no supported text encoding
	// decodes a discovery artifact.
	ErrArtifactUnreadable = errors.New("discovery artifact unreadable: no supported encoding")

	// ErrDiscoveryTool is returned when the discovery tool cannot be
	// started, exits non-zero, or leaves no output behind.
	ErrDiscoveryTool = errors.New("discovery tool failed")
)
