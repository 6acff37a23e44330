// Package cryptox implements password hashing for stored credentials using
// Argon2id with a per-user random salt.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = 32
	saltLen      = 32
)

func deriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keyLen)
}

// HashPassword derives an Argon2id key from the password under a fresh random
// salt and returns "hex(salt)$hex(key)" for storage.
func HashPassword(password []byte) string {
	salt := common.GenerateRandByteArray(saltLen)
	key := deriveKey(password, salt)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(key)
}

// VerifyPassword re-derives the key for candidate under the stored salt and
// compares it to the stored key in constant time.
func VerifyPassword(stored string, candidate []byte) (bool, error) {
	parts := strings.SplitN(stored, "$", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("malformed password hash")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("malformed salt: %w", err)
	}
	key, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("malformed key: %w", err)
	}

	keyCandidate := deriveKey(candidate, salt)
	return subtle.ConstantTimeCompare(key, keyCandidate) == 1, nil
}
