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

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/middleware"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/parksense/parksense-api/internal/utils"
	"github.com/rs/zerolog/log"
)

// HistoryStore is the session persistence used by the history routes
type HistoryStore interface {
	CreateEntry(ctx context.Context, plate, imageID string) (*models.History, error)
	CreateExit(ctx context.Context, plate, imageID string) (*models.History, error)
	UpdatePaid(ctx context.Context, plate string, paid bool) (*models.History, error)
	UpdateCar(ctx context.Context, plate string, carID uint) (*models.History, error)
	ListUnpaid(ctx context.Context) ([]models.History, error)
	ListUnresolved(ctx context.Context) ([]models.History, error)
	ListByPeriod(ctx context.Context, start, end time.Time) ([]models.History, error)
	ListByPeriodForCar(ctx context.Context, start, end time.Time, carID uint) ([]models.History, error)
}

// HistoryHandler handles parking session routes
type HistoryHandler struct {
	History   HistoryStore
	Cars      CarStore
	ExportDir string
}

// PaidInput is the payload for changing the payment flag
type PaidInput struct {
	Paid *bool `json:"paid" validate:"required"`
}

// CarLinkInput is the payload for attaching a car to a session
type CarLinkInput struct {
	CarID types.FlexID `json:"car_id" validate:"required"`
}

// RecordEntry handles POST /api/history/entry/:plate/:image_id
// @Summary Record a car entering the car park
// @Tags History
// @Produce json
// @Param plate path string true "Recognised plate"
// @Param image_id path string true "Entry camera image id"
// @Success 201 {object} models.History
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /history/entry/{plate}/{image_id} [post]
func (h *HistoryHandler) RecordEntry(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	entry, err := h.History.CreateEntry(c.UserContext(), plate, c.Params("image_id"))
	if err != nil {
		return err
	}

	log.Info().Str("plate", plate).Uint("history_id", entry.ID).Msg("car entered")
	return utils.SuccessResponse(c, entry, fiber.StatusCreated)
}

// RecordExit handles POST /api/history/exit/:plate/:image_id
// @Summary Record a car leaving the car park
// @Description Closes the most recent open session for the plate and prices it
// @Tags History
// @Produce json
// @Param plate path string true "Recognised plate"
// @Param image_id path string true "Exit camera image id"
// @Success 200 {object} models.History
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /history/exit/{plate}/{image_id} [post]
func (h *HistoryHandler) RecordExit(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	session, err := h.History.CreateExit(c.UserContext(), plate, c.Params("image_id"))
	if err != nil {
		return err
	}

	log.Info().Str("plate", plate).Uint("history_id", session.ID).Str("cost", session.Cost.String()).Msg("car left")
	return utils.SuccessResponse(c, session, fiber.StatusOK)
}

// UpdatePaid handles PATCH /api/history/paid/:plate
// @Summary Set the payment flag of the latest session for a plate
// @Tags History
// @Accept json
// @Produce json
// @Param plate path string true "License plate"
// @Param body body PaidInput true "Payment flag"
// @Success 200 {object} models.History
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /history/paid/{plate} [patch]
func (h *HistoryHandler) UpdatePaid(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	var in PaidInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	session, err := h.History.UpdatePaid(c.UserContext(), plate, *in.Paid)
	if err != nil {
		return err
	}
	if session == nil {
		return &types.NotFoundError{Entity: "history for plate", Key: plate}
	}

	return utils.SuccessResponse(c, session, fiber.StatusOK)
}

// UpdateCar handles PATCH /api/history/car/:plate
// @Summary Attach a registered car to the latest session for a plate
// @Tags History
// @Accept json
// @Produce json
// @Param plate path string true "License plate"
// @Param body body CarLinkInput true "Car id"
// @Success 200 {object} models.History
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /history/car/{plate} [patch]
func (h *HistoryHandler) UpdateCar(c *fiber.Ctx) error {
	plate, err := plateParam(c)
	if err != nil {
		return err
	}

	var in CarLinkInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	session, err := h.History.UpdateCar(c.UserContext(), plate, in.CarID.Uint())
	if err != nil {
		return err
	}
	if session == nil {
		return &types.NotFoundError{Entity: "history for plate", Key: plate}
	}

	return utils.SuccessResponse(c, session, fiber.StatusOK)
}

// ListUnpaid handles GET /api/history/unpaid
// @Summary List sessions not marked as paid
// @Tags History
// @Produce json
// @Success 200 {array} models.History
// @Router /history/unpaid [get]
func (h *HistoryHandler) ListUnpaid(c *fiber.Ctx) error {
	rows, err := h.History.ListUnpaid(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, rows, fiber.StatusOK)
}

// ListUnresolved handles GET /api/history/unresolved
// @Summary List sessions whose plate matched no registered car
// @Tags History
// @Produce json
// @Success 200 {array} models.History
// @Router /history/unresolved [get]
func (h *HistoryHandler) ListUnresolved(c *fiber.Ctx) error {
	rows, err := h.History.ListUnresolved(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, rows, fiber.StatusOK)
}

// ExportPeriod handles GET /api/history/period/:start/:end
// @Summary Download the sessions that entered within a period as CSV
// @Tags History
// @Produce text/csv
// @Param start path string true "First day (YYYY-MM-DD)"
// @Param end path string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /history/period/{start}/{end} [get]
func (h *HistoryHandler) ExportPeriod(c *fiber.Ctx) error {
	start, end, err := services.ParsePeriod(c.Params("start"), c.Params("end"))
	if err != nil {
		return err
	}

	rows, err := h.History.ListByPeriod(c.UserContext(), start, end)
	if err != nil {
		return err
	}

	return h.download(c, rows)
}

// ExportPeriodForCar handles GET /api/history/period/:start/:end/:car_id
// @Summary Download one car's sessions within a period as CSV
// @Description Allowed for admins and for the car's owner. A car with no linked user is not found.
// @Tags History
// @Produce text/csv
// @Param start path string true "First day (YYYY-MM-DD)"
// @Param end path string true "Last day, inclusive (YYYY-MM-DD)"
// @Param car_id path int true "Car id"
// @Success 200 {file} file
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /history/period/{start}/{end}/{car_id} [get]
func (h *HistoryHandler) ExportPeriodForCar(c *fiber.Ctx) error {
	start, end, err := services.ParsePeriod(c.Params("start"), c.Params("end"))
	if err != nil {
		return err
	}
	carID, err := pathID(c, "car_id")
	if err != nil {
		return err
	}

	caller, _ := middleware.CallerFrom(c)
	owner, err := h.Cars.OwnerUserID(c.UserContext(), carID)
	if err != nil {
		return err
	}
	if owner == nil {
		return &types.CustomError{
			Code:    fiber.StatusNotFound,
			Message: fmt.Sprintf("No user found with car %d", carID),
			Type:    "notFound",
		}
	}
	if !services.CanAccess(caller, *owner) {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Access to car %d denied", carID),
			Type:    "data.authorization.owner",
		}
	}

	rows, err := h.History.ListByPeriodForCar(c.UserContext(), start, end, carID)
	if err != nil {
		return err
	}

	return h.download(c, rows)
}

func (h *HistoryHandler) download(c *fiber.Ctx, rows []models.History) error {
	path, err := services.ExportHistoryToDir(rows, h.ExportDir)
	if err != nil {
		return err
	}
	log.Debug().Str("path", path).Int("rows", len(rows)).Msg("history exported")
	return c.Download(path, services.ExportFileName)
}
