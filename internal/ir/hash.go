package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows future algorithm migration.
const (
	DomainModel = "simcore/model/v1"
	DomainState = "simcore/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelHash computes the content hash of a model description.
// Two specs that rebuild the same graph hash identically regardless of
// map iteration order.
func ModelHash(spec ModelSpec) (string, error) {
	canonical, err := CanonicalModel(spec)
	if err != nil {
		return "", fmt.Errorf("ModelHash: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}

// CanonicalModel returns the canonical JSON encoding of a model description.
func CanonicalModel(spec ModelSpec) ([]byte, error) {
	return MarshalModel(spec)
}

// StateHash computes the content hash of a state snapshot.
func StateHash(state map[string]any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustModelHash is like ModelHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustModelHash(spec ModelSpec) string {
	h, err := ModelHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(state map[string]any) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}
