package database

import (
	"github.com/richstorm00/saas-starter/internal/adapter/repository"
	domainRepo "github.com/richstorm00/saas-starter/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	CustomerIndex domainRepo.CustomerIndexRepository
	WebhookEvents domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		CustomerIndex: repository.NewCustomerIndexRepository(db, logger),
		WebhookEvents: repository.NewWebhookEventRepository(db, logger),
	}
}

// NewMemoryRepositories returns process-local repositories for running
// without a database. Nothing survives a restart.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		CustomerIndex: repository.NewMemoryCustomerIndex(),
		WebhookEvents: repository.NewMemoryWebhookEvents(),
	}
}
