// Package buildinfo exposes the version stamped into the binary at link
// time via -ldflags "-X transpath/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the stamp as a map for the debug endpoint.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
