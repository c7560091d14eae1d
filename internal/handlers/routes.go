// routes.go
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
	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/middleware"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/services"
)

// Routes holds what the API routes need to serve requests
type Routes struct {
	Cars      CarStore
	History   HistoryStore
	Users     UserStore
	Sessions  services.SessionValidator
	ExportDir string
	Health    func() services.HealthCheckResult
}

// Register mounts every API route on router, normally the /api group
func (r Routes) Register(router fiber.Router) {
	auth := middleware.Authenticate(r.Sessions, r.Users)
	admin := middleware.RequireRole(models.RoleAdmin)
	user := middleware.RequireRole(models.RoleUser)

	router.Get("/health", HealthHandler(r.Health))

	carHandler := &CarHandler{Cars: r.Cars}
	cars := router.Group("/cars", auth, admin)
	cars.Post("/", carHandler.AddCar)
	cars.Get("/", carHandler.ListCars)
	cars.Get("/parked", carHandler.ListParked)
	cars.Get("/:plate", carHandler.GetCar)
	cars.Get("/:plate/exists", carHandler.CarExists)
	cars.Get("/:plate/users", carHandler.ListCarUsers)
	cars.Patch("/:plate", carHandler.UpdateCar)
	cars.Delete("/:plate", carHandler.DeleteCar)
	cars.Post("/:plate/ban", carHandler.BanCar)

	userHandler := &UserHandler{Users: r.Users, Cars: r.Cars}
	users := router.Group("/users", auth, user)
	users.Get("/me", userHandler.Me)
	users.Patch("/me", userHandler.UpdateMe)
	users.Post("/bind_chat_id", userHandler.BindChatID)
	users.Get("/:id", userHandler.GetUser)
	users.Get("/:id/cars", userHandler.ListUserCars)
	users.Post("/:id/ban", admin, userHandler.BanUser)

	historyHandler := &HistoryHandler{History: r.History, Cars: r.Cars, ExportDir: r.ExportDir}
	history := router.Group("/history")
	// Public routes used by the plate recognisers and the pay stations
	history.Post("/entry/:plate/:image_id", historyHandler.RecordEntry)
	history.Post("/exit/:plate/:image_id", historyHandler.RecordExit)
	history.Get("/unpaid", historyHandler.ListUnpaid)
	history.Get("/unresolved", historyHandler.ListUnresolved)

	history.Patch("/paid/:plate", auth, admin, historyHandler.UpdatePaid)
	history.Patch("/car/:plate", auth, admin, historyHandler.UpdateCar)
	history.Get("/period/:start/:end", auth, admin, historyHandler.ExportPeriod)
	history.Get("/period/:start/:end/:car_id", auth, user, historyHandler.ExportPeriodForCar)
}

// HealthHandler handles GET /api/health
// @Summary Health check
// @Description Reports database and Authorizer reachability
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func HealthHandler(check func() services.HealthCheckResult) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := check()
		status := fiber.StatusOK
		if !result.Healthy() {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	}
}
