package claims

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// prefixByteModule is the nkeys-style "kind" prefix for an actor
// (module) identity keypair. Upstream nkeys only ships Operator,
// Account, User, Server and Cluster prefixes; the Module prefix is a
// wascap-only extension we can't pull in without forking the
// dependency, so we reimplement nkeys' own encoding scheme (prefix
// byte + raw public key + crc16, base32, no padding) for this one
// kind. The issuer side of a token still uses real nkeys keypairs —
// see Issuer in claims.go.
const prefixByteModule byte = 12 << 3

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// ActorKeyPair is a module (actor) identity: an ed25519 keypair whose
// public key is nkeys-encoded with the Module prefix, producing the
// 56-character, 'M'-leading public key format the data model requires.
type ActorKeyPair struct {
	public string
	priv   ed25519.PrivateKey
}

// GenerateActorKeyPair creates a fresh actor identity.
func GenerateActorKeyPair() (*ActorKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("claims: generate actor keypair: %w", err)
	}
	encoded, err := encodeModulePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &ActorKeyPair{public: encoded, priv: priv}, nil
}

// PublicKey returns the actor's 56-character public key.
func (k *ActorKeyPair) PublicKey() string { return k.public }

// Sign signs data with the actor's private key.
func (k *ActorKeyPair) Sign(data []byte) []byte {
	return ed25519.Sign(k.priv, data)
}

func encodeModulePublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("claims: unexpected public key size %d", len(pub))
	}
	raw := make([]byte, 1+len(pub)+2)
	raw[0] = prefixByteModule
	copy(raw[1:], pub)
	crc := crc16(raw[:1+len(pub)])
	raw[len(raw)-2] = byte(crc)
	raw[len(raw)-1] = byte(crc >> 8)
	return base32Enc.EncodeToString(raw), nil
}

// crc16 implements the CRC-16/XMODEM variant nkeys uses to checksum
// its encoded keys (poly 0x1021, initial value 0, no reflection).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
