package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

// UnsafeOptions re-enables operations that are blocked by default because
// they let arguments execute arbitrary commands.
type UnsafeOptions struct {
	AllowUnsafeProtocolOverride bool
	AllowUnsafePack             bool
}

var (
	// config keys are case-insensitive
	protocolAllow = regexp.MustCompile(`(?i)^protocol(\.[^=]+)?\.allow$`)
	packOption    = regexp.MustCompile(`^\s*--(upload|receive)-pack`)
	cloneUpload   = regexp.MustCompile(`^\s*-u\b`)
	pushExec      = regexp.MustCompile(`^\s*--exec\b`)
)

// BlockUnsafeOperations rejects tasks whose final arguments configure
// protocol.allow or pass a custom pack program.
func BlockUnsafeOperations(opts UnsafeOptions) plugin.Plugin {
	return plugin.ArgsPlugin{Resolve: func(args []string, c plugin.Context) ([]string, error) {
		method := c.Method()
		for i, arg := range args {
			next := ""
			if i+1 < len(args) {
				next = args[i+1]
			}
			if !opts.AllowUnsafeProtocolOverride && isConfigSwitch(arg) && protocolAllow.MatchString(configKey(next)) {
				return nil, errors.NewPluginError(c.Task, errors.PluginUnsafe,
					"Configuring protocol.allow is not permitted without enabling allow_unsafe_protocol_override")
			}
			if !opts.AllowUnsafePack {
				if msg := checkPack(arg, method); msg != "" {
					return nil, errors.NewPluginError(c.Task, errors.PluginUnsafe, msg)
				}
			}
		}
		return args, nil
	}}
}

func isConfigSwitch(arg string) bool {
	return strings.ToLower(strings.TrimSpace(arg)) == "-c"
}

// configKey returns the key of a "-c key=value" pair.
func configKey(pair string) string {
	key, _, _ := strings.Cut(strings.TrimSpace(pair), "=")
	return strings.TrimSpace(key)
}

func checkPack(arg, method string) string {
	switch {
	case packOption.MatchString(arg):
		return "Use of --upload-pack or --receive-pack is not permitted without enabling allow_unsafe_pack"
	case method == "clone" && cloneUpload.MatchString(arg):
		return fmt.Sprintf("Use of %s with option -u is not permitted without enabling allow_unsafe_pack", method)
	case method == "push" && pushExec.MatchString(arg):
		return fmt.Sprintf("Use of %s with option --exec is not permitted without enabling allow_unsafe_pack", method)
	}
	return ""
}
