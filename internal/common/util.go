package common

import "crypto/rand"

// GenerateRandByteArray returns size cryptographically random bytes.
// Panics if the system RNG fails, which is not recoverable anyway.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to clear passwords and keys from memory as soon as they are no longer
// needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
