// Package idgen provides an injectable opaque-ID minter, so repositories
// and use cases never call github.com/google/uuid directly.
package idgen

import "github.com/google/uuid"

// Generator mints opaque unique identifiers.
type Generator interface {
	New() string
}

type uuidGenerator struct{}

// UUID returns a Generator backed by google/uuid's random (v4) IDs.
func UUID() Generator { return uuidGenerator{} }

func (uuidGenerator) New() string { return uuid.NewString() }
