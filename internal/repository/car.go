// car.go
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

	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/types"
	"gorm.io/gorm"
)

// CarView is a car together with the ids of its registered users, read from
// the car_user rows at query time.
type CarView struct {
	ID      uint   `json:"id"`
	Plate   string `json:"plate"`
	Ban     bool   `json:"ban"`
	UserIDs []uint `json:"user_ids"`
}

func newCarView(car *models.Car) CarView {
	ids := make([]uint, 0, len(car.Users))
	for _, u := range car.Users {
		ids = append(ids, u.ID)
	}
	return CarView{ID: car.ID, Plate: car.Plate, Ban: car.Ban, UserIDs: ids}
}

func newCarViews(cars []models.Car) []CarView {
	views := make([]CarView, 0, len(cars))
	for i := range cars {
		views = append(views, newCarView(&cars[i]))
	}
	return views
}

// CarRepository owns cars and their association to users
type CarRepository struct {
	db *gorm.DB
}

// NewCarRepository creates a car repository over db
func NewCarRepository(db *gorm.DB) *CarRepository {
	return &CarRepository{db: db}
}

// Add registers a car and links it to every user in the input, all or nothing
func (r *CarRepository) Add(ctx context.Context, in models.CarInput) (*CarView, error) {
	if in.Plate == "" {
		return nil, &types.ValidationError{Field: "plate", Message: "plate is required"}
	}
	userIDs := uniqueIDs(types.IDs(in.UserIDs.Slice()))
	car := models.Car{Plate: in.Plate, Ban: in.Ban}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := plateTaken(tx, in.Plate, 0)
		if err != nil {
			return err
		}
		if taken {
			return &types.DuplicateKeyError{Entity: "car", Key: in.Plate}
		}

		if err := tx.Create(&car).Error; err != nil {
			return writeError(err, in.Plate)
		}

		return linkUsers(tx, car.ID, userIDs)
	})
	if err != nil {
		return nil, err
	}

	return &CarView{ID: car.ID, Plate: car.Plate, Ban: car.Ban, UserIDs: userIDs}, nil
}

// GetByPlate returns the car with the exact plate, or nil when there is none
func (r *CarRepository) GetByPlate(ctx context.Context, plate string) (*CarView, error) {
	car, err := findCarByPlate(quiet(ctx, r.db).Preload("Users", orderByID("users")), plate)
	if err != nil || car == nil {
		return nil, err
	}
	view := newCarView(car)
	return &view, nil
}

// ListAll returns every car
func (r *CarRepository) ListAll(ctx context.Context) ([]CarView, error) {
	var cars []models.Car
	if err := quiet(ctx, r.db).
		Preload("Users", orderByID("users")).
		Order("id").
		Find(&cars).Error; err != nil {
		return nil, err
	}
	return newCarViews(cars), nil
}

// ListCurrentlyParked returns the distinct cars with an open parking session
func (r *CarRepository) ListCurrentlyParked(ctx context.Context) ([]CarView, error) {
	db := quiet(ctx, r.db)
	open := db.Model(&models.History{}).
		Select("car_id").
		Where("car_id IS NOT NULL AND entry_time IS NOT NULL AND exit_time IS NULL")

	var cars []models.Car
	if err := db.Preload("Users", orderByID("users")).
		Where("id IN (?)", open).
		Order("id").
		Find(&cars).Error; err != nil {
		return nil, err
	}
	return newCarViews(cars), nil
}

// ListByUser returns the distinct cars registered to an existing user
func (r *CarRepository) ListByUser(ctx context.Context, userID uint) ([]CarView, error) {
	db := quiet(ctx, r.db)

	ok, err := userExists(db, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.NotFoundError{Entity: "user", Key: userID}
	}

	linked := db.Model(&models.CarUser{}).Select("car_id").Where("user_id = ?", userID)

	var cars []models.Car
	if err := db.Preload("Users", orderByID("users")).
		Where("id IN (?)", linked).
		Order("id").
		Find(&cars).Error; err != nil {
		return nil, err
	}
	return newCarViews(cars), nil
}

// ListUsersByPlate returns the users registered to a car. An unknown plate
// yields an empty list rather than an error.
func (r *CarRepository) ListUsersByPlate(ctx context.Context, plate string) ([]models.User, error) {
	db := quiet(ctx, r.db)

	car, err := findCarByPlate(db, plate)
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if car == nil {
		return users, nil
	}

	linked := db.Model(&models.CarUser{}).Select("user_id").Where("car_id = ?", car.ID)
	if err := db.Where("id IN (?)", linked).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies the present fields of patch to the car with the given plate.
// A present user list replaces the whole association set.
func (r *CarRepository) Update(ctx context.Context, plate string, patch models.CarPatch) (*CarView, error) {
	var view *CarView

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		car, err := findCarByPlate(tx, plate)
		if err != nil {
			return err
		}
		if car == nil {
			return &types.NotFoundError{Entity: "car", Key: plate}
		}
		if patch.Empty() {
			view, err = loadCarView(tx, car.ID)
			return err
		}

		updates := map[string]interface{}{}

		if newPlate, ok := patch.Plate.Get(); ok && newPlate != car.Plate {
			if newPlate == "" {
				return &types.ValidationError{Field: "plate", Message: "plate must not be empty"}
			}
			taken, err := plateTaken(tx, newPlate, car.ID)
			if err != nil {
				return err
			}
			if taken {
				return &types.DuplicateKeyError{Entity: "car", Key: newPlate}
			}
			updates["plate"] = newPlate
		}

		if ban, ok := patch.Ban.Get(); ok && ban != car.Ban {
			updates["ban"] = ban
		}

		if ids, ok := patch.UserIDs.Get(); ok {
			if err := tx.Where("car_id = ?", car.ID).Delete(&models.CarUser{}).Error; err != nil {
				return err
			}
			if err := linkUsers(tx, car.ID, uniqueIDs(types.IDs(ids.Slice()))); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			key, _ := updates["plate"].(string)
			if err := tx.Model(car).Updates(updates).Error; err != nil {
				return writeError(err, key)
			}
		}

		view, err = loadCarView(tx, car.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

// Delete removes the car with the given plate. Association rows go first and
// its parking sessions are detached, all in one transaction.
func (r *CarRepository) Delete(ctx context.Context, plate string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		car, err := findCarByPlate(tx, plate)
		if err != nil {
			return err
		}
		if car == nil {
			return &types.NotFoundError{Entity: "car", Key: plate}
		}

		if err := tx.Where("car_id = ?", car.ID).Delete(&models.CarUser{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.History{}).Where("car_id = ?", car.ID).Update("car_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Car{}, car.ID).Error
	})
}

// Ban flags the car as banned. It reports false when no car has the plate.
func (r *CarRepository) Ban(ctx context.Context, plate string) (bool, error) {
	found := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		car, err := findCarByPlate(tx, plate)
		if err != nil || car == nil {
			return err
		}
		found = true
		return tx.Model(car).Update("ban", true).Error
	})

	return found, err
}

// Exists reports whether a car with the exact plate is registered
func (r *CarRepository) Exists(ctx context.Context, plate string) (bool, error) {
	var plates []string
	if err := quiet(ctx, r.db).Model(&models.Car{}).Where("plate = ?", plate).Pluck("plate", &plates).Error; err != nil {
		return false, err
	}
	for _, p := range plates {
		if p == plate {
			return true, nil
		}
	}
	return false, nil
}

// OwnerUserID returns the first user registered to the car, or nil when none is
func (r *CarRepository) OwnerUserID(ctx context.Context, carID uint) (*uint, error) {
	var ids []uint
	if err := quiet(ctx, r.db).Model(&models.User{}).
		Joins("JOIN car_user ON car_user.user_id = users.id").
		Where("car_user.car_id = ?", carID).
		Order("users.id").
		Limit(1).
		Pluck("users.id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// findCarByPlate returns the car whose plate matches exactly, or nil.
// The comparison is repeated in Go since some collations ignore case.
func findCarByPlate(db *gorm.DB, plate string) (*models.Car, error) {
	var cars []models.Car
	if err := db.Where("plate = ?", plate).Find(&cars).Error; err != nil {
		return nil, err
	}
	for i := range cars {
		if cars[i].Plate == plate {
			return &cars[i], nil
		}
	}
	return nil, nil
}

func loadCarView(db *gorm.DB, id uint) (*CarView, error) {
	var car models.Car
	if err := db.Preload("Users", orderByID("users")).First(&car, id).Error; err != nil {
		return nil, err
	}
	view := newCarView(&car)
	return &view, nil
}

// plateTaken reports whether another car than exceptID already uses plate
func plateTaken(db *gorm.DB, plate string, exceptID uint) (bool, error) {
	var plates []string
	query := db.Model(&models.Car{}).Where("plate = ?", plate)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Pluck("plate", &plates).Error; err != nil {
		return false, err
	}
	for _, p := range plates {
		if p == plate {
			return true, nil
		}
	}
	return false, nil
}

// linkUsers validates each user id and writes the join rows. The first
// missing user aborts the surrounding transaction.
func linkUsers(tx *gorm.DB, carID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}

	rows := make([]models.CarUser, 0, len(userIDs))
	for _, id := range userIDs {
		ok, err := userExists(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &types.NotFoundError{Entity: "user", Key: id}
		}
		rows = append(rows, models.CarUser{CarID: carID, UserID: id})
	}

	return tx.Create(&rows).Error
}

func userExists(db *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// writeError maps a uniqueness violation seen at commit time to the same
// error the pre-check raises
func writeError(err error, plate string) error {
	if isDuplicateKey(err) {
		return &types.DuplicateKeyError{Entity: "car", Key: plate}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.NotFoundError{Entity: "car", Key: plate}
	}
	return fmt.Errorf("failed to write car %q: %w", plate, err)
}
