package rstudio

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
)

// Username is the account provisioned on RStudio workspace instances.
const Username = "rstudio-user"

// Password derives the instance password: lowercase hex SHA-256 of the
// instance id followed directly by the shared secret. The instance boot script
// computes the same value.
func Password(instanceID string, secret string) string {
	sum := sha256.Sum256([]byte(instanceID + secret))
	return hex.EncodeToString(sum[:])
}

// CredentialBlob is the plaintext RStudio expects in the v parameter.
func CredentialBlob(username string, password string) string {
	return username + "\n" + password
}

// Encrypt encrypts plaintext the way RStudio's sign-in page does: RSA with
// PKCS#1 v1.5 type 2 padding over the full modulus, base64 encoded with the
// standard alphabet. rserver decrypts with the matching private key, so the
// scheme is not configurable.
func Encrypt(plaintext string, key KeyMaterial) (string, error) {
	pub, err := key.publicKey()
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("%w: failed to encrypt credentials: %w", ErrProtocol, err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (k KeyMaterial) publicKey() (*rsa.PublicKey, error) {
	if k.Exponent == nil || k.Modulus == nil {
		return nil, fmt.Errorf("%w: incomplete public key", ErrProtocol)
	}
	if !k.Exponent.IsInt64() || k.Exponent.Int64() > math.MaxInt32 || k.Exponent.Sign() <= 0 {
		return nil, fmt.Errorf("%w: public key exponent out of range", ErrProtocol)
	}
	return &rsa.PublicKey{N: k.Modulus, E: int(k.Exponent.Int64())}, nil
}
