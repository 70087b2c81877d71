// Package manifest parses and applies the declarative YAML document
// that enumerates actors, capabilities, and bindings for a host to
// load at startup (spec.md §6, "Manifest interface").
package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/types"
	"gopkg.in/yaml.v3"
)

// ActorEntry names an actor to load: an image file and the signed
// token that carries its claims. Most deployments generate Token
// alongside Path at build time, so both live in the manifest rather
// than requiring the host to parse claims back out of the image.
type ActorEntry struct {
	Path  string `yaml:"path"`
	Token string `yaml:"token"`
}

// CapabilityEntry names a capability provider to load. Native
// providers are resolved by ID against the NativeRegistry passed to
// Apply; Path is ignored for them. Portable providers are loaded from
// Path as a sandboxed image, the same way actors are.
type CapabilityEntry struct {
	ID      string `yaml:"id"`
	Binding string `yaml:"binding,omitempty"`
	Native  bool   `yaml:"native,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// BindingEntry binds an actor to a capability under a binding name.
type BindingEntry struct {
	Actor      string            `yaml:"actor"`
	Capability string            `yaml:"capability"`
	Binding    string            `yaml:"binding,omitempty"`
	Values     map[string]string `yaml:"values,omitempty"`
}

// Manifest is the top-level declarative document.
type Manifest struct {
	APIVersion   string            `yaml:"apiVersion"`
	Actors       []ActorEntry      `yaml:"actors,omitempty"`
	Capabilities []CapabilityEntry `yaml:"capabilities,omitempty"`
	Bindings     []BindingEntry    `yaml:"bindings,omitempty"`
}

// Load parses a manifest document from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}

// Applier is the subset of the host facade a manifest needs to apply
// itself. Its methods mirror host.Host's real signatures exactly, so
// a *host.Host satisfies it with no adapter layer.
type Applier interface {
	AddActor(ctx context.Context, token string, image []byte) (string, error)
	AddNativeCapability(capID, binding string, handle plugin.Handle, desc types.CapabilityDescriptor) error
	AddCapability(ctx context.Context, capID, binding string, image []byte, desc types.CapabilityDescriptor) error
	BindActor(ctx context.Context, actor, capability, binding string, values map[string]string) error
}

// NativeFactory constructs a fresh native provider handle.
type NativeFactory func() plugin.Handle

// NativeRegistry resolves a capability ID to a constructor for its
// in-process handle. Entries in the manifest with native: true must
// have a corresponding entry here, since a native provider is a Go
// value and cannot be instantiated from an arbitrary file path the
// way a portable actor or provider image can.
type NativeRegistry map[string]NativeFactory

// Apply loads actors, then capabilities, then bindings, in that
// order, failing atomically — the first error aborts the whole
// application without attempting further entries.
func (m *Manifest) Apply(ctx context.Context, a Applier, natives NativeRegistry) error {
	for _, actor := range m.Actors {
		image, err := os.ReadFile(actor.Path)
		if err != nil {
			return fmt.Errorf("manifest: read actor image %s: %w", actor.Path, err)
		}
		if _, err := a.AddActor(ctx, actor.Token, image); err != nil {
			return fmt.Errorf("manifest: add actor %s: %w", actor.Path, err)
		}
	}
	for _, cap := range m.Capabilities {
		if cap.Native {
			factory, ok := natives[cap.ID]
			if !ok {
				return fmt.Errorf("manifest: no native factory registered for capability %s", cap.ID)
			}
			if err := a.AddNativeCapability(cap.ID, cap.Binding, factory(), types.CapabilityDescriptor{}); err != nil {
				return fmt.Errorf("manifest: add native capability %s: %w", cap.ID, err)
			}
			continue
		}
		image, err := os.ReadFile(cap.Path)
		if err != nil {
			return fmt.Errorf("manifest: read capability image %s: %w", cap.Path, err)
		}
		if err := a.AddCapability(ctx, cap.ID, cap.Binding, image, types.CapabilityDescriptor{}); err != nil {
			return fmt.Errorf("manifest: add capability %s: %w", cap.ID, err)
		}
	}
	for _, b := range m.Bindings {
		if err := a.BindActor(ctx, b.Actor, b.Capability, b.Binding, b.Values); err != nil {
			return fmt.Errorf("manifest: bind %s to %s: %w", b.Actor, b.Capability, err)
		}
	}
	return nil
}
