package security

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// KeyID derives a stable key id from the public key: SHA-256 of the PKIX
// encoding, hex-encoded and truncated to 16 characters.
func (p *TokenProvider) KeyID() string {
	der, err := x509.MarshalPKIXPublicKey(p.publicKey)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])[:16]
}

// JWKS returns the JSON Web Key Set document for the provider's public key,
// suitable for serving at /.well-known/jwks.json.
func (p *TokenProvider) JWKS() ([]byte, error) {
	key, err := jwk.Import(p.publicKey)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, p.KeyID()); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, KeyAlg(p.publicKey)); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return json.Marshal(set)
}
