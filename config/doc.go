// Package config resolves the configuration of a run from cascading
// layers.
//
// A Layer is a loosely typed key/value map read from built-in defaults, a
// YAML or JSON file, the environment or the command line. Layers are
// merged in order, later layers winning per top-level key; "templates" is
// the one key merged key by key so a partial override keeps the default
// templates it does not name.
//
// ResolveGlobal merges the global layers, validates them and normalizes
// the repository list. ResolveForRepo then narrows the global result to
// one repository and package file and decodes it into a typed Config.
package config
