// common.go
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
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/parksense/parksense-api/internal/utils"
	"github.com/rs/zerolog/log"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AppConfig is the Fiber configuration the API is served with. Paths are
// unescaped before routing so that encoded plates reach the handlers decoded.
func AppConfig() fiber.Config {
	return fiber.Config{
		ErrorHandler: ErrorHandler,
		UnescapePath: true,
	}
}

// ErrorHandler renders every error returned by a route in the standard
// envelope. Domain errors keep their message, anything else is logged and
// reported as a generic internal error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		customErr *types.CustomError
		fiberErr  *fiber.Error
	)

	switch {
	case errors.As(err, &customErr):
		return utils.ErrorResponse(c, customErr.Message, customErr.Code, customErr.Type)
	case errors.As(err, &fiberErr):
		return utils.ErrorResponse(c, fiberErr.Message, fiberErr.Code, "http")
	case errors.Is(err, types.ErrValidation):
		return utils.ErrorResponse(c, validationMessage(err), fiber.StatusBadRequest, "validation")
	case errors.Is(err, types.ErrDuplicateKey):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "duplicateKey")
	case errors.Is(err, types.ErrAlreadyParked):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "alreadyParked")
	case errors.Is(err, types.ErrBanned):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "banned")
	case errors.Is(err, types.ErrNotFound):
		return utils.NotFoundResponse(c, err.Error())
	}

	log.Error().Err(err).
		Str("method", c.Method()).
		Str("url", c.OriginalURL()).
		Msg("request failed")

	return utils.ErrorResponse(c, "Internal server error", fiber.StatusInternalServerError, "internal")
}

// NotFoundHandler answers routes that match nothing
func NotFoundHandler(c *fiber.Ctx) error {
	return utils.ErrorResponse(c, "[404] Resource Not Found", fiber.StatusNotFound, "notFound")
}

// validationMessage returns the bare message of a ValidationError so clients
// see e.g. the date format hint verbatim
func validationMessage(err error) string {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

// bindBody decodes the JSON body into out and runs struct validation on it
func bindBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return &types.ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	if err := validate.Struct(out); err != nil {
		return &types.ValidationError{Message: describeValidation(err)}
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// pathID parses a positive integer id from the named path parameter
func pathID(c *fiber.Ctx, name string) (uint, error) {
	id, err := types.ParseFlexID(c.Params(name))
	if err != nil {
		return 0, &types.ValidationError{Field: name, Message: err.Error()}
	}
	return id.Uint(), nil
}

// plateParam returns the plate path parameter, rejecting an empty one
func plateParam(c *fiber.Ctx) (string, error) {
	plate := strings.TrimSpace(c.Params("plate"))
	if plate == "" {
		return "", &types.ValidationError{Field: "plate", Message: "plate is required"}
	}
	return plate, nil
}
