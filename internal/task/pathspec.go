package task

import "strings"

// pathSpecMarker cannot occur in a real argument since argv entries are
// NUL-terminated.
const pathSpecMarker = "\x00pathspec\x00"

// PathSpec marks paths that must be passed after a "--" separator at the end
// of the final argument list, whatever other arguments hooks add later.
func PathSpec(paths ...string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = pathSpecMarker + p
	}
	return out
}

// IsPathSpec reports whether arg was produced by PathSpec and returns the
// path it carries.
func IsPathSpec(arg string) (string, bool) {
	if !strings.HasPrefix(arg, pathSpecMarker) {
		return "", false
	}
	return strings.TrimPrefix(arg, pathSpecMarker), true
}
