// Package wire implements the stable binary encoding used to carry
// invocations and responses across the networked transport.
//
// This envelope is deliberately stdlib: encoding/gob over a small,
// explicitly versioned wire struct, length-prefixed so a reader never
// has to guess where one message ends and the next begins. Protobuf
// is reserved for the gRPC control-plane surface; the invocation
// envelope itself has no schema-evolution requirements that would
// justify the extra dependency.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/lattice-run/lattice-host/pkg/types"
)

// schemaVersion is bumped whenever the wire struct shape changes.
const schemaVersion = 1

type envelope struct {
	Version   uint8
	ID        string
	Origin    string
	ActorPK   string
	CapID     string
	Binding   string
	Operation string
	Msg       []byte
}

type response struct {
	Version uint8
	Msg     []byte
	Error   string
}

// EncodeInvocation serializes inv as a length-prefixed, schema-tagged
// binary payload.
func EncodeInvocation(inv types.Invocation) ([]byte, error) {
	e := envelope{
		Version:   schemaVersion,
		ID:        inv.ID,
		Origin:    inv.Origin,
		ActorPK:   inv.Target.ActorPK,
		CapID:     inv.Target.CapID,
		Binding:   inv.Target.Binding,
		Operation: inv.Operation,
		Msg:       inv.Msg,
	}
	return encode(e)
}

// DecodeInvocation is the inverse of EncodeInvocation.
func DecodeInvocation(data []byte) (types.Invocation, error) {
	var e envelope
	if err := decode(data, &e); err != nil {
		return types.Invocation{}, err
	}
	if e.Version != schemaVersion {
		return types.Invocation{}, fmt.Errorf("wire: unsupported invocation schema version %d", e.Version)
	}
	return types.Invocation{
		ID:        e.ID,
		Origin:    e.Origin,
		Target:    types.InvocationTarget{ActorPK: e.ActorPK, CapID: e.CapID, Binding: e.Binding},
		Operation: e.Operation,
		Msg:       e.Msg,
	}, nil
}

// EncodeResponse serializes resp as a length-prefixed, schema-tagged
// binary payload.
func EncodeResponse(resp types.InvocationResponse) ([]byte, error) {
	r := response{Version: schemaVersion, Msg: resp.Msg, Error: resp.Error}
	return encode(r)
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(data []byte) (types.InvocationResponse, error) {
	var r response
	if err := decode(data, &r); err != nil {
		return types.InvocationResponse{}, err
	}
	if r.Version != schemaVersion {
		return types.InvocationResponse{}, fmt.Errorf("wire: unsupported response schema version %d", r.Version)
	}
	return types.InvocationResponse{Msg: r.Msg, Error: r.Error}, nil
}

func encode(v any) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	out := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(out[:4], uint32(body.Len()))
	copy(out[4:], body.Bytes())
	return out, nil
}

func decode(data []byte, v any) error {
	if len(data) < 4 {
		return fmt.Errorf("wire: payload too short for length prefix")
	}
	n := binary.BigEndian.Uint32(data[:4])
	if int(n) != len(data)-4 {
		return fmt.Errorf("wire: length prefix %d does not match payload %d", n, len(data)-4)
	}
	dec := gob.NewDecoder(bytes.NewReader(data[4:]))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
