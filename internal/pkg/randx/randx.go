/*
Package randx provides functions for generating cryptographically secure random identifiers.

Message and connection ids are UUID v4 strings; group ids are short Base62 codes
with a fixed prefix so they can never collide with a username-shaped target.
Secret produces signing keys for processes started without a configured one.
*/
package randx

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// GroupIDPrefix is the prefix of every generated group id.
	GroupIDPrefix = "grp_"

	// GroupIDRawLength is the fixed length of the Base62 part of a group id.
	GroupIDRawLength = 10

	// SecretBytes is the amount of entropy in a generated secret.
	SecretBytes = 32
)

// base62 returns n cryptographically random Base62 characters.
func base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// GroupID generates a new group identifier such as "grp_4fZk0aQ19x".
func GroupID() (string, error) {
	raw, err := base62(GroupIDRawLength)
	if err != nil {
		return "", err
	}
	return GroupIDPrefix + raw, nil
}

// IsValidGroupID checks that id has the group prefix followed by GroupIDRawLength Base62 characters.
func IsValidGroupID(id string) bool {
	raw, ok := strings.CutPrefix(id, GroupIDPrefix)
	if !ok || len(raw) != GroupIDRawLength {
		return false
	}

	for _, char := range raw {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// ConnID generates an identifier for a live connection, used only in logs.
func ConnID() string {
	return uuid.New().String()
}

// Secret returns SecretBytes random bytes, hex encoded.
func Secret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
