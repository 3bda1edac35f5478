package builtin

import "github.com/felixgeelhaar/gitpipe/internal/plugin"

// ConfigPrefix passes every entry as "-c <entry>" ahead of the command.
func ConfigPrefix(config []string) plugin.Plugin {
	if len(config) == 0 {
		return nil
	}

	prefix := make([]string, 0, len(config)*2)
	for _, entry := range config {
		prefix = append(prefix, "-c", entry)
	}

	return plugin.ArgsPlugin{Resolve: func(args []string, _ plugin.Context) ([]string, error) {
		out := make([]string, 0, len(prefix)+len(args))
		out = append(out, prefix...)
		return append(out, args...), nil
	}}
}
