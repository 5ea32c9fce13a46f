package models

import "time"

// Scan is one successful analysis. Rows are written once and never updated.
type Scan struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	WalletAddress    string    `gorm:"not null;index:idx_scans_wallet_ts,priority:1" json:"wallet_address"`
	TokenAddress     string    `gorm:"not null" json:"token_address"`
	InitialMarketCap float64   `json:"initial_market_cap"`
	Timestamp        time.Time `gorm:"not null;index:idx_scans_wallet_ts,priority:2" json:"timestamp"`
}

func (Scan) TableName() string {
	return "scans"
}
