package random

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Generator returns random (v4) UUIDs.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) GetID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	return id.String(), nil
}
