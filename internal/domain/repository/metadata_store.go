package repository

import (
	"context"

	"github.com/richstorm00/saas-starter/internal/domain/entity"
)

// MetadataStore is the per-user metadata document held by the identity provider.
type MetadataStore interface {
	// Get returns the user's document, or ErrUserNotFound.
	Get(ctx context.Context, userID string) (*entity.MetadataDocument, error)

	// Merge applies a key-level patch and returns the resulting document.
	Merge(ctx context.Context, userID string, patch entity.MetadataPatch) (*entity.MetadataDocument, error)

	// List returns one page of users ordered by creation.
	List(ctx context.Context, offset, limit int) ([]*entity.MetadataDocument, error)
}
