// models/wallet.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet mirrors custodial wallet data from the custody service. The keys
// never touch this service; we only track the address and last-seen
// balances for display.
// Table name: wallets
type Wallet struct {
	ID                 string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID             string    `gorm:"type:uuid;not null;index" json:"user_id"` // External user ID
	Chain              string    `gorm:"type:varchar(64);not null;index" json:"chain"`
	Address            string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"address"` // Primary lookup key
	IsCustodial        bool      `gorm:"not null" json:"is_custodial"`
	IsActive           bool      `gorm:"not null" json:"is_active"`
	SolBalance         float64   `json:"sol_balance"`
	UsdcBalance        float64   `json:"usdc_balance"`
	LastBalanceCheckAt time.Time `gorm:"not null" json:"last_balance_check_at"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index"`
}
