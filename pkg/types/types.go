// Package types holds the wire-level data model shared across the
// host: actor/provider identity, claims, invocation envelopes and
// responses, and the subject namespace.
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// SystemActor is the reserved origin used by the host itself when
// synthesizing invocations (configuration calls, direct invokes).
const SystemActor = "system"

// ExtrasCapabilityID is the built-in capability implicitly granted to
// every actor regardless of its claims.
const ExtrasCapabilityID = "wasmbus:extras"

// Well-known operation names. Part of the external contract with
// providers and actors; must be preserved verbatim.
const (
	OpBindActor    = "OP_BIND_ACTOR"
	OpRemoveActor  = "OP_REMOVE_ACTOR"
	OpInitialize   = "OP_INITIALIZE"
	OpDeinitialize = "OP_DEINITIALIZE"
)

// DefaultBindingName is used whenever a caller does not name a binding.
const DefaultBindingName = "default"

// ActorClaims is the signed metadata carried by an actor's token.
type ActorClaims struct {
	Subject   string // actor public key, must match the token subject
	Name      string
	Caps      []string // capability IDs this actor may invoke
	Issuer    string   // public key of the signing (account) keypair
	NotBefore int64    // unix seconds, 0 = no constraint
	Expires   int64    // unix seconds, 0 = never
	Revoked   bool
}

// HasCap reports whether capid is present in the claims' capability set.
func (c *ActorClaims) HasCap(capid string) bool {
	for _, have := range c.Caps {
		if have == capid {
			return true
		}
	}
	return false
}

// CapabilityDescriptor is the metadata a provider publishes about
// itself when it is loaded.
type CapabilityDescriptor struct {
	ID          string
	BindingName string
	Name        string
	Version     string
	Operations  []string
}

// Binding is a recorded (actor, capability, binding-name) relationship.
type Binding struct {
	ActorPK     string
	CapID       string
	BindingName string
}

// InvocationTarget is the tagged union describing where an invocation
// is headed: an actor, or a capability provider under a binding name.
type InvocationTarget struct {
	ActorPK string // set when targeting an actor
	CapID   string // set when targeting a capability
	Binding string // only meaningful alongside CapID
}

// IsActor reports whether the target names an actor.
func (t InvocationTarget) IsActor() bool { return t.ActorPK != "" }

func (t InvocationTarget) String() string {
	if t.IsActor() {
		return fmt.Sprintf("actor(%s)", t.ActorPK)
	}
	return fmt.Sprintf("capability(%s,%s)", t.CapID, t.Binding)
}

// Invocation is the canonical envelope carried on the bus.
type Invocation struct {
	ID        string // correlation id, assigned by the caller
	Origin    string // SystemActor or an actor public key
	Target    InvocationTarget
	Operation string
	Msg       []byte
}

// InvocationResponse is the canonical reply envelope. Exactly one of
// Msg/Error carries signal.
type InvocationResponse struct {
	Msg   []byte
	Error string // non-empty indicates failure at any layer
}

// NewInvocationToActor builds an envelope addressed to an actor.
func NewInvocationToActor(origin, actorPK, operation string, msg []byte) Invocation {
	return Invocation{ID: uuid.NewString(), Origin: origin, Target: InvocationTarget{ActorPK: actorPK}, Operation: operation, Msg: msg}
}

// NewInvocationToCapability builds an envelope addressed to a
// capability provider binding.
func NewInvocationToCapability(origin, capid, binding, operation string, msg []byte) Invocation {
	return Invocation{ID: uuid.NewString(), Origin: origin, Target: InvocationTarget{CapID: capid, Binding: binding}, Operation: operation, Msg: msg}
}

// ActorSubject returns the bus subject an actor's lifecycle worker
// subscribes to.
func ActorSubject(pk string) string {
	return "wasmbus.actor." + pk
}

// ProviderSubject returns the bus subject a capability provider's
// lifecycle worker subscribes to.
func ProviderSubject(capid, binding string) string {
	if binding == "" {
		binding = DefaultBindingName
	}
	return "wasmbus.provider." + capid + "." + binding
}

// BindConfig is the payload of an OP_BIND_ACTOR configuration
// invocation.
type BindConfig struct {
	Module string
	Values map[string]string
}

// IsValidActorPK reports whether pk has the host's actor public-key
// shape: 56 characters, uppercase base32-like, first character 'M'.
func IsValidActorPK(pk string) bool {
	if len(pk) != 56 || pk[0] != 'M' {
		return false
	}
	for _, r := range pk {
		if !((r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7')) {
			return false
		}
	}
	return true
}
