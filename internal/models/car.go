package models

import (
	"time"

	"github.com/parksense/parksense-api/internal/types"
)

// Car is a vehicle identified by its license plate
type Car struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Plate     string `gorm:"uniqueIndex;size:32;not null"`
	Ban       bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Users     []User `gorm:"many2many:car_user;"`
}

// TableName overrides the table name for Car
func (Car) TableName() string {
	return "cars"
}

// CarUser is the join row between a car and one of its registered users
type CarUser struct {
	CarID  uint `gorm:"primaryKey;autoIncrement:false"`
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
}

// TableName overrides the table name for CarUser
func (CarUser) TableName() string {
	return "car_user"
}

// CarInput is the payload for registering a new car
type CarInput struct {
	Plate   string                       `json:"plate" validate:"required,max=32"`
	Ban     bool                         `json:"ban"`
	UserIDs types.FlexList[types.FlexID] `json:"user_ids"`
}

// CarPatch is a partial update of a car. Only present fields are applied.
type CarPatch struct {
	Plate   types.Optional[string]                       `json:"plate"`
	Ban     types.Optional[bool]                         `json:"ban"`
	UserIDs types.Optional[types.FlexList[types.FlexID]] `json:"user_ids"`
}

// Empty reports whether the patch carries no fields at all
func (p CarPatch) Empty() bool {
	return !p.Plate.Set && !p.Ban.Set && !p.UserIDs.Set
}
