// Package claims implements actor identity, signed token
// issuance/validation, and the capability authorization check.
package claims

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/nats-io/nkeys"
)

// Issuer wraps the nkeys account keypair that signs actor claims.
// This is a real nkeys keypair (nkeys.CreateAccount), standing in for
// the "account" that vouches for an actor the way a NATS operator
// vouches for an account.
type Issuer struct {
	kp     nkeys.KeyPair
	public string
}

// NewIssuer generates a fresh nkeys account keypair to act as issuer.
func NewIssuer() (*Issuer, error) {
	kp, err := nkeys.CreateAccount()
	if err != nil {
		return nil, fmt.Errorf("claims: create issuer keypair: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("claims: read issuer public key: %w", err)
	}
	return &Issuer{kp: kp, public: pub}, nil
}

// PublicKey returns the issuer's nkeys-encoded public key.
func (iss *Issuer) PublicKey() string { return iss.public }

// payload is the JSON body signed by the issuer. Field names are kept
// short and stable since they are part of the wire contract of a
// token once issued.
type payload struct {
	Sub       string   `json:"sub"` // actor public key
	Iss       string   `json:"iss"` // issuer public key
	Name      string   `json:"name,omitempty"`
	Caps      []string `json:"caps,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	Expires   int64    `json:"exp,omitempty"`
	Revoked   bool     `json:"revoked,omitempty"`
}

// Issue produces a compact, signed token for actorPK carrying the
// given capability set. The token format is "payload.sig", both
// segments base64url-encoded, signed with the issuer's nkeys keypair.
func (iss *Issuer) Issue(actorPK string, c types.ActorClaims) (string, error) {
	if c.Subject != "" && c.Subject != actorPK {
		return "", fmt.Errorf("claims: subject %q does not match actor %q", c.Subject, actorPK)
	}
	p := payload{
		Sub:       actorPK,
		Iss:       iss.public,
		Name:      c.Name,
		Caps:      c.Caps,
		NotBefore: c.NotBefore,
		Expires:   c.Expires,
		Revoked:   c.Revoked,
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("claims: marshal payload: %w", err)
	}
	encodedBody := base64.RawURLEncoding.EncodeToString(body)
	sig, err := iss.kp.Sign([]byte(encodedBody))
	if err != nil {
		return "", fmt.Errorf("claims: sign token: %w", err)
	}
	encodedSig := base64.RawURLEncoding.EncodeToString(sig)
	return encodedBody + "." + encodedSig, nil
}

// Validate verifies token's signature, enforces not-before/expiry
// against wall time, and rejects a revoked token. It does not compare
// the token's subject against any actor public key; ValidateForActor
// adds that check. It does not consult revocation lists beyond the
// Revoked flag baked into the token itself; the registry is the
// authority for "is this actor still resident".
func Validate(token string) (*types.ActorClaims, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, errKind(kindFormat, "token is not in payload.sig form")
	}
	encodedBody, encodedSig := parts[0], parts[1]

	body, err := base64.RawURLEncoding.DecodeString(encodedBody)
	if err != nil {
		return nil, errKind(kindFormat, "malformed payload segment: %v", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return nil, errKind(kindFormat, "malformed signature segment: %v", err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errKind(kindFormat, "malformed claims payload: %v", err)
	}

	issuerKP, err := nkeys.FromPublicKey(p.Iss)
	if err != nil {
		return nil, errKind(kindSignature, "invalid issuer key: %v", err)
	}
	if err := issuerKP.Verify([]byte(encodedBody), sig); err != nil {
		return nil, errKind(kindSignature, "signature verification failed: %v", err)
	}

	now := time.Now().Unix()
	if p.NotBefore != 0 && now < p.NotBefore {
		return nil, errKind(kindNotYetValid, "token not valid until %d", p.NotBefore)
	}
	if p.Expires != 0 && now >= p.Expires {
		return nil, errKind(kindExpired, "token expired at %d", p.Expires)
	}
	if p.Revoked {
		return nil, errKind(kindRevoked, "token has been revoked")
	}

	return &types.ActorClaims{
		Subject:   p.Sub,
		Name:      p.Name,
		Caps:      p.Caps,
		Issuer:    p.Iss,
		NotBefore: p.NotBefore,
		Expires:   p.Expires,
		Revoked:   p.Revoked,
	}, nil
}

// ValidateForActor validates token and additionally enforces that its
// subject matches pk — the check spec.md §4.2 calls rejecting "tokens
// whose subject does not match the encoded public key".
func ValidateForActor(token, pk string) (*types.ActorClaims, error) {
	c, err := Validate(token)
	if err != nil {
		return nil, err
	}
	if c.Subject != pk {
		return nil, errKind(kindFormat, "token subject %q does not match actor public key %q", c.Subject, pk)
	}
	return c, nil
}

// CanInvoke reports whether an actor holding claims may invoke capid:
// true when capid is explicitly granted, when capid is the built-in
// extras capability (implicitly granted to all actors), or when the
// call originates from SYSTEM_ACTOR.
func CanInvoke(origin string, c *types.ActorClaims, capid string) bool {
	if origin == types.SystemActor {
		return true
	}
	if capid == types.ExtrasCapabilityID {
		return true
	}
	if c == nil {
		return false
	}
	return c.HasCap(capid)
}

// ValidationKind distinguishes the reason token validation failed,
// matching the spec's requirement for "explicit error kinds for each
// failure mode".
type ValidationKind string

const (
	kindFormat      ValidationKind = "format"
	kindSignature   ValidationKind = "signature"
	kindNotYetValid ValidationKind = "not_yet_valid"
	kindExpired     ValidationKind = "expired"
	kindRevoked     ValidationKind = "revoked"
)

// ValidationError carries the specific ValidationKind alongside a
// human-readable message.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("claims validation (%s): %s", e.Kind, e.Msg) }

func errKind(kind ValidationKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
