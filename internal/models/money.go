package models

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Money is a nullable decimal amount stored with two fraction digits
type Money struct {
	decimal.NullDecimal
}

// NewMoney returns a valid amount rounded to cents
func NewMoney(d decimal.Decimal) Money {
	return Money{decimal.NewNullDecimal(d.Round(2))}
}

// Value promotes the embedded NullDecimal's Value method
func (m Money) Value() (driver.Value, error) {
	return m.NullDecimal.Value()
}

// Scan promotes the embedded NullDecimal's Scan method
func (m *Money) Scan(value interface{}) error {
	return m.NullDecimal.Scan(value)
}

// String renders the amount with two decimals, or an empty string when null
func (m Money) String() string {
	if !m.Valid {
		return ""
	}
	return m.Decimal.StringFixed(2)
}

// GormDBDataType picks an exact numeric column type for each database driver.
func (Money) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "DECIMAL(12,2)"
	case "postgres":
		return "NUMERIC(12,2)"
	case "sqlserver", "mssql":
		return "DECIMAL(12,2)"
	case "sqlite":
		return "NUMERIC"
	}
	return "DECIMAL(12,2)"
}
