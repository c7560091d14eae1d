package models

import "time"

// Rate is a parking tariff. The most recently created rate is the current one.
type Rate struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	PricePerHour Money     `gorm:"not null" json:"price_per_hour"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the table name for Rate
func (Rate) TableName() string {
	return "rates"
}
