// cars.go
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

	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/parksense/parksense-api/internal/utils"
)

// CarStore is the car persistence used by the car routes
type CarStore interface {
	Add(ctx context.Context, in models.CarInput) (*repository.CarView, error)
	GetByPlate(ctx context.Context, plate string) (*repository.CarView, error)
	ListAll(ctx context.Context) ([]repository.CarView, error)
	ListCurrentlyParked(ctx context.Context) ([]repository.CarView, error)
	ListByUser(ctx context.Context, userID uint) ([]repository.CarView, error)
	ListUsersByPlate(ctx context.Context, plate string) ([]models.User, error)
	Update(ctx context.Context, plate string, patch models.CarPatch) (*repository.CarView, error)
	Delete(ctx context.Context, plate string) error
	Ban(ctx context.Context, plate string) (bool, error)
	Exists(ctx context.Context, plate string) (bool, error)
	OwnerUserID(ctx context.Context, carID uint) (*uint, error)
}

// CarHandler handles car routes
type CarHandler struct {
	Cars CarStore
}

// AddCar handles POST /api/cars
// @Summary Register a car
// @Description Register a car and link it to existing users, all or nothing
// @Tags Cars
// @Accept json
// @Produce json
// @Param car body models.CarInput true "Car"
// @Success 201 {object} repository.CarView
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /cars [post]
func (h *CarHandler) AddCar(c *fiber.Ctx) error {
	var in models.CarInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	car, err := h.Cars.Add(c.UserContext(), in)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, car, fiber.StatusCreated)
}

// ListCars handles GET /api/cars
// @Summary List cars
// @Tags Cars
// @Produce json
// @Success 200 {array} repository.CarView
// @Security CookieAuth
// @Router /cars [get]
func (h *CarHandler) ListCars(c *fiber.Ctx) error {
	cars, err := h.Cars.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, cars, fiber.StatusOK)
}

// ListParked handles GET /api/cars/parked
// @Summary List currently parked cars
// @Tags Cars
// @Produce json
// @Success 200 {array} repository.CarView
// @Security CookieAuth
// @Router /cars/parked [get]
func (h *CarHandler) ListParked(c *fiber.Ctx) error {
	cars, err := h.Cars.ListCurrentlyParked(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, cars, fiber.StatusOK)
}

// GetCar handles GET /api/cars/:plate
// @Summary Get a car by plate
// @Tags Cars
// @Produce json
// @Param plate path string true "License plate"
// @Success 200 {object} repository.CarView
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /cars/{plate} [get]
func (h *CarHandler) GetCar(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	car, err := h.Cars.GetByPlate(c.UserContext(), plate)
	if err != nil {
		return err
	}
	if car == nil {
		return &types.NotFoundError{Entity: "car", Key: plate}
	}

	return utils.SuccessResponse(c, car, fiber.StatusOK)
}

// CarExists handles GET /api/cars/:plate/exists
// @Summary Check whether a plate is registered
// @Tags Cars
// @Produce json
// @Param plate path string true "License plate"
// @Success 200 {object} utils.ExistsResponseStruct
// @Security CookieAuth
// @Router /cars/{plate}/exists [get]
func (h *CarHandler) CarExists(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	exists, err := h.Cars.Exists(c.UserContext(), plate)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, utils.ExistsResponseStruct{Exists: exists}, fiber.StatusOK)
}

// ListCarUsers handles GET /api/cars/:plate/users
// @Summary List the users registered to a car
// @Description An unknown plate yields an empty list
// @Tags Cars
// @Produce json
// @Param plate path string true "License plate"
// @Success 200 {array} models.User
// @Security CookieAuth
// @Router /cars/{plate}/users [get]
func (h *CarHandler) ListCarUsers(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	users, err := h.Cars.ListUsersByPlate(c.UserContext(), plate)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, users, fiber.StatusOK)
}

// UpdateCar handles PATCH /api/cars/:plate
// @Summary Update a car
// @Description Apply the present fields. A present user_ids list replaces all links.
// @Tags Cars
// @Accept json
// @Produce json
// @Param plate path string true "License plate"
// @Param patch body models.CarPatch true "Fields to change"
// @Success 200 {object} repository.CarView
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /cars/{plate} [patch]
func (h *CarHandler) UpdateCar(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	var patch models.CarPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}

	car, err := h.Cars.Update(c.UserContext(), plate, patch)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, car, fiber.StatusOK)
}

// DeleteCar handles DELETE /api/cars/:plate
// @Summary Delete a car
// @Description Removes the car and its user links and detaches its parking history
// @Tags Cars
// @Produce json
// @Param plate path string true "License plate"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /cars/{plate} [delete]
func (h *CarHandler) DeleteCar(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	if err := h.Cars.Delete(c.UserContext(), plate); err != nil {
		return err
	}

	return utils.MessageResponse(c, "Car deleted")
}

// BanCar handles POST /api/cars/:plate/ban
// @Summary Ban a car
// @Tags Cars
// @Produce json
// @Param plate path string true "License plate"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /cars/{plate}/ban [post]
func (h *CarHandler) BanCar(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	found, err := h.Cars.Ban(c.UserContext(), plate)
	if err != nil {
		return err
	}
	if !found {
		return &types.NotFoundError{Entity: "car", Key: plate}
	}

	return utils.MessageResponse(c, "Car banned")
}
