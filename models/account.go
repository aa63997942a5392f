// Package models contains the persisted entities of the gateway bridge
package models

import "time"

// Account owns a set of SMS gateway credentials. The password is stored as a
// ciphertext envelope and is only decrypted by the credential resolver.
type Account struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Name                     string    `gorm:"size:255;not null" json:"name"`
	GatewayBaseURL           *string   `gorm:"size:2048" json:"gateway_base_url,omitempty"`
	GatewayUsername          *string   `gorm:"size:255;index:idx_accounts_gateway_username" json:"gateway_username,omitempty"`
	GatewayPasswordEncrypted *string   `gorm:"type:text" json:"-"`
	CreatedAt                time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// HasGatewayConfigured reports whether all three gateway fields are present
func (a *Account) HasGatewayConfigured() bool {
	return nonEmpty(a.GatewayBaseURL) && nonEmpty(a.GatewayUsername) && nonEmpty(a.GatewayPasswordEncrypted)
}

// AccountFilter provides filter fields for repository queries
type AccountFilter struct {
	ID              *uint
	Name            *string
	GatewayUsername *string
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
