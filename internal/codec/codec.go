// Package codec maps record ids to the URL-safe tokens used in share links.
package codec

import (
	"errors"

	"github.com/google/uuid"
)

// ErrMalformed is returned when a token does not decode to an id.
var ErrMalformed = errors.New("malformed token")

// Codec is a pure bidirectional mapping between an id and its public token.
type Codec interface {
	Encode(id uuid.UUID) (string, error)
	Decode(token string) (uuid.UUID, error)
}

// New returns the codec registered under name: "base64" (default) or "sqids".
func New(name string) (Codec, error) {
	switch name {
	case "", "base64":
		return Base64{}, nil
	case "sqids":
		return NewSqids()
	}
	return nil, errors.New("unknown token codec " + name)
}
