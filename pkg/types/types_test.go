package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorClaims_HasCap(t *testing.T) {
	c := &ActorClaims{Caps: []string{"wascc:http_server", "wascc:keyvalue"}}
	assert.True(t, c.HasCap("wascc:http_server"))
	assert.False(t, c.HasCap("wascc:messaging"))
}

func TestInvocationTarget(t *testing.T) {
	actorTarget := InvocationTarget{ActorPK: "Mxyz"}
	assert.True(t, actorTarget.IsActor())
	assert.Equal(t, "actor(Mxyz)", actorTarget.String())

	capTarget := InvocationTarget{CapID: "wascc:http_server", Binding: "default"}
	assert.False(t, capTarget.IsActor())
	assert.Equal(t, "capability(wascc:http_server,default)", capTarget.String())
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "wasmbus.actor.M123", ActorSubject("M123"))
	assert.Equal(t, "wasmbus.provider.wascc:http_server.default", ProviderSubject("wascc:http_server", ""))
	assert.Equal(t, "wasmbus.provider.wascc:http_server.custom", ProviderSubject("wascc:http_server", "custom"))
}

func TestIsValidActorPK(t *testing.T) {
	valid := "M" + stringsRepeat("A", 55)
	assert.True(t, IsValidActorPK(valid))
	assert.False(t, IsValidActorPK("Nabc"))
	assert.False(t, IsValidActorPK("M123"))
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
