// Package merkle computes order-sensitive Merkle roots over hex-encoded SHA-256 digests.
//
// Leaves are paired left to right. A pair (a, b) produces sha256(a || b) over the
// decoded bytes. When a level has an odd number of nodes, the last node moves up
// to the next level unchanged.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// EmptyRoot is the root of a window with no hashes: the SHA-256 digest of the empty string.
const EmptyRoot = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// ErrInvalidHash indicates a leaf that is not a lowercase hex-encoded SHA-256 digest.
var ErrInvalidHash = errors.New("invalid leaf hash")

// Root returns the Merkle root of hashes in the given order.
func Root(hashes []string) (string, error) {
	if len(hashes) == 0 {
		return EmptyRoot, nil
	}

	level := make([][]byte, len(hashes))
	for i, h := range hashes {
		b, err := decode(h)
		if err != nil {
			return "", fmt.Errorf("%w: leaf %d: %w", ErrInvalidHash, i, err)
		}
		level[i] = b
	}

	for len(level) > 1 {
		level = next(level)
	}

	return hex.EncodeToString(level[0]), nil
}

// Pair returns the parent of two hex digests.
func Pair(a, b string) (string, error) {
	return Root([]string{a, b})
}

func next(level [][]byte) [][]byte {
	parents := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 == len(level) {
			parents = append(parents, level[i])
			continue
		}
		h := sha256.New()
		h.Write(level[i])
		h.Write(level[i+1])
		parents = append(parents, h.Sum(nil))
	}
	return parents
}

func decode(h string) ([]byte, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("want %d bytes, got %d", sha256.Size, len(b))
	}
	// Roots are compared as strings, so a leaf must already be in the form
	// Root renders.
	if hex.EncodeToString(b) != h {
		return nil, errors.New("not lowercase hex")
	}
	return b, nil
}
