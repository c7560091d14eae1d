package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/rs/zerolog/log"
)

// SessionCookie is the Authorizer session cookie name
const SessionCookie = "cookie_session"

const (
	callerKey = "caller"
	userKey   = "user"
)

// UserLookup resolves the local user for an authenticated e-mail address
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticate validates the session cookie and resolves the caller. Unknown
// and banned users are rejected.
func Authenticate(validator services.SessionValidator, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const errorType = "data.authorization.user"

		session := c.Cookies(SessionCookie)
		if session == "" {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Authorizer cookie %q not found", SessionCookie),
				Type:    errorType,
			}
		}

		identity, err := validator.ValidateSession(session, nil)
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Invalid session: %v", err),
				Type:    errorType,
			}
		}

		user, err := users.GetByEmail(c.UserContext(), identity.Email)
		if err != nil {
			return err
		}
		if user == nil {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "User is not registered",
				Type:    errorType,
			}
		}
		if user.Ban {
			log.Info().Uint("user_id", user.ID).Msg("rejected banned user")
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "User is banned",
				Type:    errorType,
			}
		}

		c.Locals(userKey, user)
		c.Locals(callerKey, services.CallerFromUser(user))

		return c.Next()
	}
}

// RequireRole lets the request through only when the caller holds the role.
// Admins pass every role check.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Not authenticated",
				Type:    "data.authorization." + string(role),
			}
		}
		if caller.Role != role && !caller.IsAdmin() {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Role %q required", role),
				Type:    "data.authorization." + string(role),
			}
		}
		return c.Next()
	}
}

// CallerFrom returns the caller stored by Authenticate
func CallerFrom(c *fiber.Ctx) (services.Caller, bool) {
	caller, ok := c.Locals(callerKey).(services.Caller)
	return caller, ok
}

// UserFrom returns the user stored by Authenticate
func UserFrom(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userKey).(*models.User)
	return user, ok
}
