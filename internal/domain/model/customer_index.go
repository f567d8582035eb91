package model

import (
	"time"

	"github.com/google/uuid"
)

// CustomerIndex maps processor customer ids to identity-provider user ids.
type CustomerIndex struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProviderCustomerID string    `gorm:"column:provider_customer_id;uniqueIndex;not null;size:100" json:"provider_customer_id"`
	UserID             string    `gorm:"column:user_id;not null;size:100;index" json:"user_id"`
	Source             string    `gorm:"size:20;not null;default:'checkout'" json:"source"`
	CreatedAt          time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerIndex) TableName() string {
	return "customer_index"
}
