package id

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const defaultTokenLength = 21

// Generator mints record/user ids and e-mail confirmation tokens.
type Generator struct {
	tokenLength int
}

// New returns a Generator whose tokens have the provided length. If length <= 0, a sane default is used.
func New(tokenLength int) *Generator {
	if tokenLength <= 0 {
		tokenLength = defaultTokenLength
	}
	return &Generator{tokenLength: tokenLength}
}

// NewID returns a random UUID.
func (g *Generator) NewID(ctx context.Context) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	v, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate id: %w", err)
	}
	return v, nil
}

// Token returns a new URL-safe confirmation token.
func (g *Generator) Token(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return gonanoid.New(g.tokenLength)
}
