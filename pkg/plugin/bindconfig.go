package plugin

import (
	"encoding/json"

	"github.com/lattice-run/lattice-host/pkg/types"
)

// EncodeBindConfig serializes a BindConfig for an OP_BIND_ACTOR
// invocation payload. JSON keeps the configuration invocation
// readable across host versions and inspectable in logs.
func EncodeBindConfig(cfg types.BindConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

func decodeBindConfig(data []byte, cfg *types.BindConfig) error {
	return json.Unmarshal(data, cfg)
}
