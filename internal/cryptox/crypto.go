// Package cryptox implements the at-rest encryption used by the credential
// store: AES-GCM over JSON-serialized values, with Argon2id key derivation
// from a device secret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"

	"golang.org/x/crypto/argon2"
)

// DeriveKey derives a 32-byte AES key from a device secret and salt using
// Argon2id. The same (secret, salt) pair always yields the same key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Encrypt serializes v to JSON and encrypts it with AES-GCM under key.
// A fresh random 12-byte nonce is generated per call and returned alongside
// the ciphertext. The key must be 16, 24, or 32 bytes.
func Encrypt(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt reverses Encrypt: it opens the AES-GCM ciphertext with the given
// key and nonce and unmarshals the resulting JSON into v.
func Decrypt(ciphertext, nonce, key []byte, v any) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
