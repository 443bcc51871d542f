// Package cryptox wraps the cryptographic primitives behind member
// authentication and circle key distribution: passphrase key derivation,
// symmetric wrapping of private keys at rest, RSA key pairs for the
// possession proof and circle-key grants, and content checksums.
//
// All functions are pure with respect to their inputs; none keep state.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	// SymmetricKeySize is the size of every derived symmetric key (AES-256).
	SymmetricKeySize = 32

	rsaKeyBits        = 2048
	publicKeyPEMType  = "PUBLIC KEY"
	privateKeyPEMType = "RSA PRIVATE KEY"
)

// DeriveKeyFromPassphrase derives a symmetric key from a passphrase and the
// member's stored salt using Argon2id. The derivation is deterministic:
// identical inputs always yield a bit-identical key.
func DeriveKeyFromPassphrase(secret []byte, salt string) []byte {
	return argon2.IDKey(secret, []byte(salt), 1, 64*1024, 4, SymmetricKeySize)
}

// DeriveKeyFromRawKey converts pre-shared raw key material directly into a
// symmetric key, bypassing passphrase derivation. Used for session/API keys.
func DeriveKeyFromRawKey(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// GenerateInitialVector derives the IV used to wrap a member's private key
// at rest from the member's salt. Deterministic, so the stored ciphertext
// can be re-opened with nothing but the salt and the derived key.
func GenerateInitialVector(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:aes.BlockSize]
}

// EncryptBytes encrypts plaintext with AES-256-CFB under the given key and
// IV. The cipher is deliberately unauthenticated: decrypting with a wrong
// key yields garbage instead of an error, and the possession-proof
// round-trip is what detects it.
func EncryptBytes(key, iv, plaintext []byte) ([]byte, error) {
	stream, err := cfbStream(key, iv, true)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)
	return ciphertext, nil
}

// DecryptBytes is the inverse of EncryptBytes.
func DecryptBytes(key, iv, ciphertext []byte) ([]byte, error) {
	stream, err := cfbStream(key, iv, false)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

func cfbStream(key, iv []byte, encrypt bool) (cipher.Stream, error) {
	if len(key) != SymmetricKeySize {
		return nil, opError("cipher", errors.New("invalid key size"))
	}
	if len(iv) != aes.BlockSize {
		return nil, opError("cipher", errors.New("invalid iv size"))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, opError("cipher", err)
	}
	if encrypt {
		return cipher.NewCFBEncrypter(block, iv), nil
	}
	return cipher.NewCFBDecrypter(block, iv), nil
}

// KeyPair holds a member's asymmetric key pair. The private half exists
// only in memory inside an authenticated context; at rest it is stored
// wrapped (see WrapPrivateKey).
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// GenerateKeyPair creates a fresh RSA-2048 key pair. Called only at account
// bootstrap and on member invalidation.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, opError("generate key pair", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// EncryptAsymmetric encrypts plaintext under the public key (RSA-OAEP with
// SHA-256). Used for the possession-proof challenge and for wrapping circle
// keys under member public keys.
func EncryptAsymmetric(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if pub == nil {
		return nil, opError("encrypt asymmetric", errors.New("nil public key"))
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return nil, opError("encrypt asymmetric", err)
	}
	return ciphertext, nil
}

// DecryptAsymmetric decrypts ciphertext with the private key. A mismatched
// key fails with an error rather than silently returning wrong bytes.
func DecryptAsymmetric(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if priv == nil {
		return nil, opError("decrypt asymmetric", errors.New("nil private key"))
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, opError("decrypt asymmetric", err)
	}
	return plaintext, nil
}

// Armor encodes a public key as a PEM string for storage and transport.
func Armor(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", opError("armor", errors.New("nil public key"))
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", opError("armor", err)
	}
	block := &pem.Block{Type: publicKeyPEMType, Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// Unarmor decodes a PEM-armored public key.
func Unarmor(armored string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(armored))
	if block == nil || block.Type != publicKeyPEMType {
		return nil, opError("unarmor", errors.New("no public key PEM block"))
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, opError("unarmor", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, opError("unarmor", errors.New("not an RSA public key"))
	}
	return rsaPub, nil
}

// WrapPrivateKey encrypts the private half of kp under the symmetric key,
// with the IV derived from the member's salt, and returns the base64
// storage form.
func WrapPrivateKey(kp *KeyPair, symKey []byte, salt string) (string, error) {
	if kp == nil || kp.Private == nil {
		return "", opError("wrap private key", errors.New("nil key pair"))
	}
	der := x509.MarshalPKCS1PrivateKey(kp.Private)
	ciphertext, err := EncryptBytes(symKey, GenerateInitialVector(salt), der)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// ExtractKeyPair rebuilds a key pair from its storage form: the base64
// wrapped private key, the armored public key, the symmetric key derived
// from the submitted credential, and the member's salt.
//
// A wrong symmetric key produces garbage private-key bytes; that usually
// surfaces here as a parse error, but callers must still run the
// possession-proof round-trip, since CFB decryption itself never fails.
func ExtractKeyPair(wrappedPriv, armoredPub string, symKey []byte, salt string) (*KeyPair, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(wrappedPriv)
	if err != nil {
		return nil, opError("extract key pair", err)
	}
	der, err := DecryptBytes(symKey, GenerateInitialVector(salt), ciphertext)
	if err != nil {
		return nil, err
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, opError("extract key pair", err)
	}
	pub, err := Unarmor(armoredPub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// EncryptPayload encrypts a data-object payload with AES-256-GCM under the
// circle key. A fresh random 12-byte nonce is generated per call and
// returned separately for storage alongside the object metadata.
func EncryptPayload(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := gcm(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, opError("encrypt payload", err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptPayload is the inverse of EncryptPayload. Unlike the private-key
// wrapping cipher, this one is authenticated: a wrong key or tampered
// ciphertext fails outright.
func DecryptPayload(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := gcm(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, opError("decrypt payload", err)
	}
	return plaintext, nil
}

func gcm(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, opError("payload cipher", errors.New("invalid key size"))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, opError("payload cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, opError("payload cipher", err)
	}
	return aead, nil
}

// Checksum returns the SHA-256 hex fingerprint of data. Stored alongside
// encrypted objects for the integrity scanner.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
