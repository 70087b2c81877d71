package manifest

import (
	"github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/providers/httpserver"
	"github.com/lattice-run/lattice-host/pkg/providers/keyvalue"
)

// DefaultNativeRegistry wires the in-tree reference providers under
// their well-known capability IDs, for manifests that declare them
// native rather than loading a portable image.
func DefaultNativeRegistry(b bus.Bus) NativeRegistry {
	return NativeRegistry{
		"wascc:http_server": func() plugin.Handle { return httpserver.New(b) },
		"wascc:keyvalue":    func() plugin.Handle { return keyvalue.New() },
	}
}
