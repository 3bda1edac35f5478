// Package builtin provides the plugins an executor installs from its
// configuration: binary override, config prefixing, unsafe argument
// blocking, path-spec suffixing, spawn credentials, block timeouts, abort
// handling, progress reporting and the default error detection.
//
// Constructors return nil when their configuration leaves nothing to do;
// plugin.Registry.Add ignores nil plugins.
package builtin
