// Package jwk models JSON Web Keys (RFC 7517) for the curves supported by this module and computes
// RFC 7638 thumbprints.
package jwk

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	// KeyTypeEC is the kty for elliptic curve keys.
	KeyTypeEC = "EC"
	// KeyTypeOKP is the kty for octet key pairs (Edwards curves).
	KeyTypeOKP = "OKP"

	CurveSecp256k1 = "secp256k1"
	CurveEd25519   = "Ed25519"
)

// ErrInvalidKey is returned when a JWK is missing members required for its key type.
var ErrInvalidKey = errors.New("invalid key")

// JWK is a JSON Web Key. Values are treated as immutable; methods that "change" a key return a copy.
type JWK struct {
	KTY    string   `json:"kty"`
	CRV    string   `json:"crv,omitempty"`
	ALG    string   `json:"alg,omitempty"`
	KID    string   `json:"kid,omitempty"`
	Use    string   `json:"use,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	X5U    string   `json:"x5u,omitempty"`
	X5C    []string `json:"x5c,omitempty"`
	X5T    string   `json:"x5t,omitempty"`
	X5T256 string   `json:"x5t#S256,omitempty"`
	D      string   `json:"d,omitempty"`
	X      string   `json:"x,omitempty"`
	Y      string   `json:"y,omitempty"`
}

// IsPrivate reports whether the key carries private material.
func (j JWK) IsPrivate() bool {
	return j.D != ""
}

// PublicKey returns a copy of the key with the private scalar removed.
func (j JWK) PublicKey() JWK {
	pub := j
	pub.D = ""
	if j.KeyOps != nil {
		pub.KeyOps = append([]string(nil), j.KeyOps...)
	}
	if j.X5C != nil {
		pub.X5C = append([]string(nil), j.X5C...)
	}
	return pub
}

// Validate checks that the members required by the key type are present.
func (j JWK) Validate() error {
	switch j.KTY {
	case KeyTypeEC:
		if j.CRV == "" || j.X == "" || j.Y == "" {
			return errors.Wrap(ErrInvalidKey, "EC key requires crv, x and y")
		}
	case KeyTypeOKP:
		if j.CRV == "" || j.X == "" {
			return errors.Wrap(ErrInvalidKey, "OKP key requires crv and x")
		}
	case "":
		return errors.Wrap(ErrInvalidKey, "kty is required")
	default:
		return errors.Wrapf(ErrInvalidKey, "unsupported kty: %s", j.KTY)
	}
	return nil
}

// requiredMembers projects the key onto the members RFC 7638 uses for the thumbprint of its key type.
func (j JWK) requiredMembers() (map[string]string, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	members := map[string]string{
		"kty": j.KTY,
		"crv": j.CRV,
		"x":   j.X,
	}
	if j.KTY == KeyTypeEC {
		members["y"] = j.Y
	}
	return members, nil
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint, base64url encoded without padding. Optional members such as
// alg, kid and use never influence the result.
func (j JWK) Thumbprint() (string, error) {
	members, err := j.requiredMembers()
	if err != nil {
		return "", err
	}
	// maps are marshaled with lexicographically sorted keys and no whitespace
	canonical, err := json.Marshal(members)
	if err != nil {
		return "", errors.Wrap(err, "serializing required members")
	}
	digest := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// Equal compares the key material of two keys, ignoring optional members.
func (j JWK) Equal(other JWK) bool {
	return j.KTY == other.KTY && j.CRV == other.CRV && j.X == other.X && j.Y == other.Y && j.D == other.D
}
