package beatparser

// Version is the public semantic version of this module.
const Version = "1.0.0"

// SupportedFormats is an informational list of container/codec hints this
// package's callers commonly decode upstream; beat-parser itself only
// consumes already-decoded PCM.
var SupportedFormats = []string{".wav", ".mp3", ".ogg", ".flac", ".m4a"}

// GetVersion returns the package version.
func GetVersion() string { return Version }

// GetSupportedFormats returns SupportedFormats.
func GetSupportedFormats() []string {
	out := make([]string, len(SupportedFormats))
	copy(out, SupportedFormats)
	return out
}
