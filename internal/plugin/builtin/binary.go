package builtin

import (
	"regexp"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

// DefaultBinary is spawned when no binary is configured.
const DefaultBinary = "git"

const (
	wrongNumberOfBinaries = "Invalid value supplied for custom binary, requires one or two strings"
	wrongBinaryChars      = "Invalid value supplied for custom binary, restricted characters must be removed or set unsafe.allow_unsafe_custom_binary"
)

var safeBinary = regexp.MustCompile(`(?i)^([a-z]:)?([a-z0-9/.\\_-]+)$`)

// CustomBinary replaces the spawned binary. A second element is inserted as
// the first argument, so {"wsl", "git"} runs "wsl git <args>".
func CustomBinary(binary []string, allowUnsafe bool, logger *log.Logger) ([]plugin.Plugin, error) {
	if len(binary) == 0 {
		binary = []string{DefaultBinary}
	}
	if len(binary) > 2 {
		return nil, errors.NewPluginError(nil, errors.PluginBinary, wrongNumberOfBinaries)
	}

	for _, part := range binary {
		if safeBinary.MatchString(part) {
			continue
		}
		if !allowUnsafe {
			return nil, errors.NewPluginError(nil, errors.PluginBinary, wrongBinaryChars)
		}
		if logger != nil {
			logger.Warn(wrongBinaryChars, "binary", part)
		}
	}

	bin := binary[0]
	plugins := []plugin.Plugin{
		plugin.BinaryPlugin{Resolve: func(string, plugin.Context) (string, error) {
			return bin, nil
		}},
	}

	if len(binary) == 2 {
		prefix := binary[1]
		plugins = append(plugins, plugin.ArgsPlugin{Resolve: func(args []string, _ plugin.Context) ([]string, error) {
			return append([]string{prefix}, args...), nil
		}})
	}
	return plugins, nil
}
