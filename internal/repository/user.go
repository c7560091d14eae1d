// user.go
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
	"strings"
	"unicode/utf8"

	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/types"
	"gorm.io/gorm"
)

const maxUsernameLength = 150

// UserRepository looks up and maintains registered users
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository over db
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken e-mail is reported as a duplicate key.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Role != models.RoleUser && u.Role != models.RoleAdmin {
		return &types.ValidationError{Field: "role", Message: "role must be user or admin"}
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return &types.DuplicateKeyError{Entity: "user", Key: u.Email}
		}
		return err
	}
	return nil
}

// GetByID returns the user with the id, or nil when there is none
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return firstUser(quiet(ctx, r.db).Where("id = ?", id))
}

// GetByEmail returns the user with the e-mail address, or nil when there is none
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return firstUser(quiet(ctx, r.db).Where("email = ?", email))
}

// Ban flags the user as banned. It reports false when the user does not exist.
func (r *UserRepository) Ban(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("ban", true)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	// Banning an already banned user touches no row on some drivers
	u, err := r.GetByID(ctx, id)
	return u != nil, err
}

// Update applies the present fields of patch to the user with the id
func (r *UserRepository) Update(ctx context.Context, id uint, patch models.UserPatch) (*models.User, error) {
	var user *models.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = firstUser(tx.Where("id = ?", id))
		if err != nil {
			return err
		}
		if user == nil {
			return &types.NotFoundError{Entity: "user", Key: id}
		}

		name, ok := patch.Username.Get()
		if !ok {
			return nil
		}
		name = strings.TrimSpace(name)
		if utf8.RuneCountInString(name) > maxUsernameLength {
			return &types.ValidationError{Field: "username", Message: "username must be at most 150 characters"}
		}
		if name == user.Username {
			return nil
		}
		user.Username = name
		return tx.Model(user).Update("username", name).Error
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// BindChatID stores the messenger chat id of the user with the e-mail address.
// It reports false when no user has that address.
func (r *UserRepository) BindChatID(ctx context.Context, email string, chatID int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("chat_id", chatID)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	u, err := r.GetByEmail(ctx, email)
	return u != nil, err
}

func firstUser(query *gorm.DB) (*models.User, error) {
	var u models.User
	err := query.First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
