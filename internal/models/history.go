package models

import "time"

// History is one parking session of a car, from entry detection to exit
type History struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Plate            string     `gorm:"size:32;not null;index" json:"plate"`
	EntryTime        *time.Time `gorm:"index" json:"entry_time"`
	ExitTime         *time.Time `json:"exit_time"`
	ParkingTime      *float64   `json:"parking_time"`
	Cost             Money      `json:"cost"`
	Paid             bool       `gorm:"not null;default:false" json:"paid"`
	CarID            *uint      `gorm:"index" json:"car_id"`
	Car              *Car       `gorm:"foreignKey:CarID;constraint:OnDelete:SET NULL" json:"-"`
	ImageID          string     `gorm:"size:64" json:"image_id"`
	ExitImageID      *string    `gorm:"size:64" json:"exit_image_id"`
	RateID           *uint      `json:"rate_id"`
	Rate             *Rate      `gorm:"foreignKey:RateID;constraint:OnDelete:SET NULL" json:"-"`
	NumberFreeSpaces *int       `json:"number_free_spaces"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName overrides the table name for History
func (History) TableName() string {
	return "history"
}
