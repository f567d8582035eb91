package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/richstorm00/saas-starter/internal/domain/entity"
	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
	"go.uber.org/zap"
)

// DefaultClerkBaseURL is the Clerk Backend API root. The SDK appends the
// API version.
const DefaultClerkBaseURL = "https://api.clerk.com"

const defaultClerkTimeout = 10 * time.Second

// ClerkConfig configures the Clerk Backend API client.
type ClerkConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type clerkMetadataStore struct {
	users  *user.Client
	logger *zap.Logger
}

// NewClerkMetadataStore creates a metadata store backed by Clerk user metadata
func NewClerkMetadataStore(cfg ClerkConfig, logger *zap.Logger) repository.MetadataStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClerkTimeout
	}

	config := &clerk.ClientConfig{}
	config.Key = clerk.String(cfg.SecretKey)
	config.URL = clerk.String(clerkBaseURL(cfg.BaseURL))
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &clerkMetadataStore{
		users:  user.NewClient(config),
		logger: logger,
	}
}

// clerkBaseURL accepts roots with or without the version suffix.
func clerkBaseURL(raw string) string {
	if raw == "" {
		return DefaultClerkBaseURL
	}
	return strings.TrimSuffix(strings.TrimRight(raw, "/"), "/v1")
}

func (s *clerkMetadataStore) Get(ctx context.Context, userID string) (*entity.MetadataDocument, error) {
	usr, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, clerkError("get user", err)
	}
	return toDocument(usr)
}

// Merge reads the user, applies the patch per key and writes the touched
// partitions back whole. Clerk's metadata merge endpoint is recursive, which
// would keep nested keys of a replaced subscription object.
func (s *clerkMetadataStore) Merge(ctx context.Context, userID string, patch entity.MetadataPatch) (*entity.MetadataDocument, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	merged := patch.Apply(current)
	params := &user.UpdateParams{}
	if len(patch.Private) > 0 {
		raw, err := json.Marshal(merged.Private)
		if err != nil {
			return nil, fmt.Errorf("failed to encode private metadata: %w", err)
		}
		private := json.RawMessage(raw)
		params.PrivateMetadata = &private
	}
	if len(patch.Public) > 0 {
		raw, err := json.Marshal(merged.Public)
		if err != nil {
			return nil, fmt.Errorf("failed to encode public metadata: %w", err)
		}
		public := json.RawMessage(raw)
		params.PublicMetadata = &public
	}

	usr, err := s.users.Update(ctx, userID, params)
	if err != nil {
		err = clerkError("update user metadata", err)
		apperrors.LogError(s.logger, err, "Failed to update user metadata", zap.String("user_id", userID))
		return nil, err
	}
	return toDocument(usr)
}

func (s *clerkMetadataStore) List(ctx context.Context, offset, limit int) ([]*entity.MetadataDocument, error) {
	params := &user.ListParams{OrderBy: clerk.String("+created_at")}
	params.Limit = clerk.Int64(int64(limit))
	params.Offset = clerk.Int64(int64(offset))

	list, err := s.users.List(ctx, params)
	if err != nil {
		return nil, clerkError("list users", err)
	}

	docs := make([]*entity.MetadataDocument, 0, len(list.Users))
	for _, usr := range list.Users {
		doc, err := toDocument(usr)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// clerkError maps SDK failures onto the service's error codes. A 404 is
// ErrUserNotFound; every other failure is an upstream error.
func clerkError(op string, err error) error {
	var apiErr *clerk.APIErrorResponse
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusNotFound {
			return domainErrors.ErrUserNotFound
		}
		return apperrors.NewAppError(apperrors.ErrUpstream, "Identity provider request failed",
			fmt.Errorf("%s returned %d: %s", op, apiErr.HTTPStatusCode, apiErr.Error()))
	}
	return apperrors.NewAppError(apperrors.ErrUpstream, "Identity provider request failed",
		fmt.Errorf("%s: %w", op, err))
}

func toDocument(usr *clerk.User) (*entity.MetadataDocument, error) {
	doc := &entity.MetadataDocument{UserID: usr.ID}

	private, err := decodePartition(usr.PrivateMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private metadata of %s: %w", usr.ID, err)
	}
	public, err := decodePartition(usr.PublicMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public metadata of %s: %w", usr.ID, err)
	}
	doc.Private, doc.Public = private, public

	for _, addr := range usr.EmailAddresses {
		if addr == nil {
			continue
		}
		primary := usr.PrimaryEmailAddressID != nil && addr.ID == *usr.PrimaryEmailAddressID
		if primary || doc.Email == "" {
			doc.Email = addr.EmailAddress
		}
	}
	return doc, nil
}

func decodePartition(raw json.RawMessage) (entity.Partition, error) {
	partition := entity.Partition{}
	if len(raw) == 0 || string(raw) == "null" {
		return partition, nil
	}
	if err := json.Unmarshal(raw, &partition); err != nil {
		return nil, err
	}
	if partition == nil {
		partition = entity.Partition{}
	}
	return partition, nil
}
