package frame

// Version information for the frame module.
const (
	// Version is the current version of the frame module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version whose streams this
	// version decodes.
	MinCompatibleVersion = "1.0.0"
)
