package builtin

import "github.com/felixgeelhaar/gitpipe/internal/plugin"

// SpawnOptions runs processes as uid and gid. Values already present on the
// options win.
func SpawnOptions(uid, gid *uint32) plugin.Plugin {
	if uid == nil && gid == nil {
		return nil
	}
	return plugin.SpawnOptionsPlugin{Resolve: func(o plugin.SpawnOptions, _ plugin.Context) plugin.SpawnOptions {
		if o.UID == nil && uid != nil {
			v := *uid
			o.UID = &v
		}
		if o.GID == nil && gid != nil {
			v := *gid
			o.GID = &v
		}
		return o
	}}
}
