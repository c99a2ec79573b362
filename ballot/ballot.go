// Package ballot seals cast votes and issues verifiable receipts.
//
// A ballot is encrypted with secretbox under the server key. The receipt is
// the SHA-256 of the sealed ballot; its digest is split with Shamir secret
// sharing so that no single stored row is enough to reconstruct it.
package ballot

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/codahale/sss"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize   = 24
	payloadSize = 16
)

var (
	ErrCorrupt        = errors.New("sealed ballot cannot be opened")
	ErrNotEnoughShare = errors.New("not enough receipt shares")
)

// Sealed is the output of sealing one ballot.
type Sealed struct {
	Box     []byte
	Receipt string
	Shares  map[byte][]byte
}

type Sealer struct {
	key       [32]byte
	shares    byte
	threshold byte
}

func NewSealer(key [32]byte, shares, threshold int) (*Sealer, error) {
	if threshold < 2 || threshold > shares || shares > 255 {
		return nil, fmt.Errorf("invalid sharing scheme %d-of-%d", threshold, shares)
	}
	return &Sealer{key: key, shares: byte(shares), threshold: byte(threshold)}, nil
}

// Threshold is the number of shares Verify needs.
func (s *Sealer) Threshold() int { return int(s.threshold) }

// Seal encrypts the (event, candidate) choice and splits its receipt.
func (s *Sealer) Seal(eventID, candidateID uint) (Sealed, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Sealed{}, fmt.Errorf("generate nonce: %w", err)
	}

	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(payload[:8], uint64(eventID))
	binary.BigEndian.PutUint64(payload[8:], uint64(candidateID))

	box := secretbox.Seal(nonce[:], payload, &nonce, &s.key)
	digest := sha256.Sum256(box)

	shares, err := sss.Split(s.shares, s.threshold, digest[:])
	if err != nil {
		return Sealed{}, fmt.Errorf("split receipt: %w", err)
	}
	return Sealed{
		Box:     box,
		Receipt: hex.EncodeToString(digest[:]),
		Shares:  shares,
	}, nil
}

// Open decrypts a sealed ballot.
func (s *Sealer) Open(box []byte) (eventID, candidateID uint, err error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return 0, 0, ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	payload, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok || len(payload) != payloadSize {
		return 0, 0, ErrCorrupt
	}
	return uint(binary.BigEndian.Uint64(payload[:8])), uint(binary.BigEndian.Uint64(payload[8:])), nil
}

// Verify reconstructs the receipt digest from shares and compares it with
// the receipt the voter presented.
func (s *Sealer) Verify(receipt string, shares map[byte][]byte) (bool, error) {
	if len(shares) < int(s.threshold) {
		return false, ErrNotEnoughShare
	}
	want, err := hex.DecodeString(receipt)
	if err != nil || len(want) != sha256.Size {
		return false, nil
	}
	for _, share := range shares {
		if len(share) != sha256.Size {
			return false, nil
		}
	}
	got := sss.Combine(shares)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Receipt recomputes the receipt of a sealed ballot.
func Receipt(box []byte) string {
	digest := sha256.Sum256(box)
	return hex.EncodeToString(digest[:])
}
