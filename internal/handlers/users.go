// users.go
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

package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/middleware"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/parksense/parksense-api/internal/utils"
)

// UserStore is the user persistence used by the user routes
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Ban(ctx context.Context, id uint) (bool, error)
	Update(ctx context.Context, id uint, patch models.UserPatch) (*models.User, error)
	BindChatID(ctx context.Context, email string, chatID int64) (bool, error)
}

// UserHandler handles user routes
type UserHandler struct {
	Users UserStore
	Cars  CarStore
}

// Me handles GET /api/users/me
// @Summary Get the signed in user
// @Tags Users
// @Produce json
// @Success 200 {object} models.User
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/me [get]
func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "Not authenticated", Type: "data.authorization.user"}
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// UpdateMe handles PATCH /api/users/me
// @Summary Update the signed in user's profile
// @Tags Users
// @Accept json
// @Produce json
// @Param patch body models.UserPatch true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/me [patch]
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return &types.CustomError{Code: fiber.StatusForbidden, Message: "Not authenticated", Type: "data.authorization.user"}
	}

	var patch models.UserPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}

	updated, err := h.Users.Update(c.UserContext(), user.ID, patch)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, updated, fiber.StatusOK)
}

// BindChatID handles POST /api/users/bind_chat_id
// @Summary Bind a messenger chat to a user
// @Description Allowed for admins and for the user owning the e-mail address
// @Tags Users
// @Accept json
// @Produce json
// @Param binding body models.ChatBinding true "E-mail and chat id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/bind_chat_id [post]
func (h *UserHandler) BindChatID(c *fiber.Ctx) error {
	var binding models.ChatBinding
	if err := bindBody(c, &binding); err != nil {
		return err
	}

	target, err := h.Users.GetByEmail(c.UserContext(), binding.Email)
	if err != nil {
		return err
	}
	if target == nil {
		return &types.NotFoundError{Entity: "user", Key: binding.Email}
	}

	caller, _ := middleware.CallerFrom(c)
	if !services.CanAccess(caller, target.ID) {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Binding a chat for another user denied",
			Type:    "data.authorization.owner",
		}
	}

	found, err := h.Users.BindChatID(c.UserContext(), binding.Email, *binding.ChatID)
	if err != nil {
		return err
	}
	if !found {
		return &types.NotFoundError{Entity: "user", Key: binding.Email}
	}

	return utils.MessageResponse(c, "Chat ID bound successfully")
}

// GetUser handles GET /api/users/:id
// @Summary Get a user profile
// @Tags Users
// @Produce json
// @Param id path int true "User id"
// @Success 200 {object} models.User
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.Users.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return &types.NotFoundError{Entity: "user", Key: id}
	}

	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// BanUser handles POST /api/users/:id/ban
// @Summary Ban a user
// @Tags Users
// @Produce json
// @Param id path int true "User id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/{id}/ban [post]
func (h *UserHandler) BanUser(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	found, err := h.Users.Ban(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !found {
		return &types.NotFoundError{Entity: "user", Key: id}
	}

	return utils.MessageResponse(c, "User banned")
}

// ListUserCars handles GET /api/users/:id/cars
// @Summary List the cars registered to a user
// @Description Allowed for admins and for the user themself
// @Tags Users
// @Produce json
// @Param id path int true "User id"
// @Success 200 {array} repository.CarView
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/{id}/cars [get]
func (h *UserHandler) ListUserCars(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	caller, _ := middleware.CallerFrom(c)
	if !services.CanAccess(caller, id) {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Access to the cars of user %d denied", id),
			Type:    "data.authorization.owner",
		}
	}

	cars, err := h.Cars.ListByUser(c.UserContext(), id)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, cars, fiber.StatusOK)
}
