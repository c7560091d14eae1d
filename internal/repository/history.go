// history.go
//
// A parking management data service for plate-recognition car parks
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of parksense-api.
// parksense-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// parksense-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with parksense-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const openSession = "entry_time IS NOT NULL AND exit_time IS NULL"

// HistoryRepository owns the lifecycle of parking sessions.
//
// Updates by plate target the most recent row for that plate (highest id).
// Exit detection targets the most recent open session for that plate. At most
// one session per plate is open, enforced by an index where the database
// supports partial indexes.
type HistoryRepository struct {
	db       *gorm.DB
	capacity int
	now      func() time.Time
}

// NewHistoryRepository creates a history repository for a car park with the given number of spaces
func NewHistoryRepository(db *gorm.DB, capacity int) *HistoryRepository {
	return &HistoryRepository{db: db, capacity: capacity, now: time.Now}
}

// SetClock replaces the time source used for entry and exit stamps
func (r *HistoryRepository) SetClock(now func() time.Time) {
	r.now = now
}

// CreateEntry opens a parking session for the plate. The car may be unknown,
// in which case the session is stored without a car.
func (r *HistoryRepository) CreateEntry(ctx context.Context, plate, imageID string) (*models.History, error) {
	var entry models.History

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.History{}).Where("plate = ? AND "+openSession, plate).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: %s", types.ErrAlreadyParked, plate)
		}

		car, err := findCarByPlate(tx, plate)
		if err != nil {
			return err
		}
		if car != nil && car.Ban {
			return fmt.Errorf("%w: %s", types.ErrBanned, plate)
		}

		rate, err := currentRate(tx)
		if err != nil {
			return err
		}

		occupied, err := countOpen(tx)
		if err != nil {
			return err
		}
		free := r.freeSpaces(occupied + 1)
		now := r.now().UTC()

		entry = models.History{
			Plate:            plate,
			EntryTime:        &now,
			ImageID:          imageID,
			NumberFreeSpaces: &free,
		}
		if car != nil {
			entry.CarID = &car.ID
		}
		if rate != nil {
			entry.RateID = &rate.ID
		}

		if err := tx.Create(&entry).Error; err != nil {
			// A concurrent entry for the plate won the open session index
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %s", types.ErrAlreadyParked, plate)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// CreateExit closes the most recent open session for the plate and prices it
func (r *HistoryRepository) CreateExit(ctx context.Context, plate, imageID string) (*models.History, error) {
	var session models.History

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Rate").
			Where("plate = ? AND "+openSession, plate).
			Order("entry_time DESC, id DESC").
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "open session", Key: plate}
		}
		if err != nil {
			return err
		}

		occupied, err := countOpen(tx)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		hours := math.Max(0, math.Round(now.Sub(*session.EntryTime).Hours()*100)/100)
		cost := decimal.Zero
		if session.Rate != nil && session.Rate.PricePerHour.Valid {
			cost = session.Rate.PricePerHour.Decimal.Mul(decimal.NewFromFloat(hours))
		}
		free := r.freeSpaces(occupied - 1)

		session.ExitTime = &now
		session.ExitImageID = &imageID
		session.ParkingTime = &hours
		session.Cost = models.NewMoney(cost)
		session.NumberFreeSpaces = &free

		return tx.Model(&session).Updates(map[string]interface{}{
			"exit_time":          session.ExitTime,
			"exit_image_id":      session.ExitImageID,
			"parking_time":       session.ParkingTime,
			"cost":               session.Cost,
			"number_free_spaces": session.NumberFreeSpaces,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// UpdatePaid sets the payment flag of the most recent session for the plate.
// It returns nil when the plate has no history.
func (r *HistoryRepository) UpdatePaid(ctx context.Context, plate string, paid bool) (*models.History, error) {
	var latest *models.History

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		latest, err = latestByPlate(tx, plate)
		if err != nil || latest == nil {
			return err
		}
		latest.Paid = paid
		return tx.Model(latest).Update("paid", paid).Error
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// UpdateCar attaches an existing car to the most recent session for the plate.
// It returns nil when the plate has no history.
func (r *HistoryRepository) UpdateCar(ctx context.Context, plate string, carID uint) (*models.History, error) {
	var latest *models.History

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		latest, err = latestByPlate(tx, plate)
		if err != nil || latest == nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Car{}).Where("id = ?", carID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return &types.NotFoundError{Entity: "car", Key: carID}
		}

		latest.CarID = &carID
		return tx.Model(latest).Update("car_id", carID).Error
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// ListUnpaid returns the sessions not marked as paid
func (r *HistoryRepository) ListUnpaid(ctx context.Context) ([]models.History, error) {
	return r.list(quiet(ctx, r.db).Where("paid = ? OR paid IS NULL", false).Order("id"))
}

// ListUnresolved returns the sessions whose plate matched no car
func (r *HistoryRepository) ListUnresolved(ctx context.Context) ([]models.History, error) {
	return r.list(quiet(ctx, r.db).Where("car_id IS NULL").Order("id"))
}

// ListByPeriod returns the sessions that entered within [start, end]
func (r *HistoryRepository) ListByPeriod(ctx context.Context, start, end time.Time) ([]models.History, error) {
	return r.list(quiet(ctx, r.db).
		Where("entry_time BETWEEN ? AND ?", start.UTC(), end.UTC()).
		Order("entry_time, id"))
}

// ListByPeriodForCar returns the sessions of one car that entered within [start, end]
func (r *HistoryRepository) ListByPeriodForCar(ctx context.Context, start, end time.Time, carID uint) ([]models.History, error) {
	return r.list(quiet(ctx, r.db).
		Where("car_id = ? AND entry_time BETWEEN ? AND ?", carID, start.UTC(), end.UTC()).
		Order("entry_time, id"))
}

func (r *HistoryRepository) list(query *gorm.DB) ([]models.History, error) {
	rows := []models.History{}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *HistoryRepository) freeSpaces(occupied int64) int {
	free := r.capacity - int(occupied)
	if free < 0 {
		return 0
	}
	return free
}

func latestByPlate(tx *gorm.DB, plate string) (*models.History, error) {
	var rows []models.History
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plate = ?", plate).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func currentRate(tx *gorm.DB) (*models.Rate, error) {
	var rates []models.Rate
	if err := tx.Order("id DESC").Limit(1).Find(&rates).Error; err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func countOpen(tx *gorm.DB) (int64, error) {
	var count int64
	err := tx.Model(&models.History{}).Where(openSession).Count(&count).Error
	return count, err
}
