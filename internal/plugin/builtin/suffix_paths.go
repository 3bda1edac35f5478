package builtin

import (
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// SuffixPaths moves path specs, and everything following a literal "--",
// behind a single "--" at the end of the argument list.
func SuffixPaths() plugin.Plugin {
	return plugin.ArgsPlugin{Resolve: func(args []string, _ plugin.Context) ([]string, error) {
		return suffixPaths(args), nil
	}}
}

func suffixPaths(args []string) []string {
	prefix := make([]string, 0, len(args))
	var suffix []string
	separated := false

	for i, arg := range args {
		if path, ok := task.IsPathSpec(arg); ok {
			suffix = append(suffix, path)
			separated = true
			continue
		}
		if arg == "--" {
			separated = true
			for _, rest := range args[i+1:] {
				if path, ok := task.IsPathSpec(rest); ok {
					rest = path
				}
				suffix = append(suffix, rest)
			}
			break
		}
		prefix = append(prefix, arg)
	}

	if !separated {
		return prefix
	}
	return append(append(prefix, "--"), suffix...)
}
