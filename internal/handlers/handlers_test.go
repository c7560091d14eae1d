// handlers_test.go
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

package handlers_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/parksense/parksense-api/internal/database"
	"github.com/parksense/parksense-api/internal/database/dbtest"
	"github.com/parksense/parksense-api/internal/handlers"
	"github.com/parksense/parksense-api/internal/middleware"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/parksense/parksense-api/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSessions maps session cookies to e-mail addresses
type fakeSessions map[string]string

func (f fakeSessions) ValidateSession(cookie string, _ []string) (*services.Session, error) {
	email, ok := f[cookie]
	if !ok {
		return nil, errors.New("session is not valid")
	}
	return &services.Session{Email: email}, nil
}

type testServer struct {
	app      *fiber.App
	db       *gorm.DB
	admin    *models.User
	driver   *models.User
	other    *models.User
	sessions fakeSessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	_, err := database.EnsureDefaultRate(db, decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	ctx := context.Background()
	admin := &models.User{Email: "admin@example.com", Role: models.RoleAdmin}
	driver := &models.User{Email: "driver@example.com"}
	other := &models.User{Email: "other@example.com"}
	banned := &models.User{Email: "banned@example.com"}
	for _, u := range []*models.User{admin, driver, other, banned} {
		require.NoError(t, users.Create(ctx, u))
	}
	_, err = users.Ban(ctx, banned.ID)
	require.NoError(t, err)

	sessions := fakeSessions{
		"session-admin":   admin.Email,
		"session-driver":  driver.Email,
		"session-other":   other.Email,
		"session-banned":  banned.Email,
		"session-unknown": "nobody@example.com",
	}

	app := fiber.New(handlers.AppConfig())
	api := app.Group("/api", middleware.VersionMiddleware())
	handlers.Routes{
		Cars:      repository.NewCarRepository(db),
		History:   repository.NewHistoryRepository(db, 10),
		Users:     users,
		Sessions:  sessions,
		ExportDir: t.TempDir(),
		Health: func() services.HealthCheckResult {
			return services.HealthCheckResult{Status: "healthy", Database: "ok"}
		},
	}.Register(api)
	app.Use(handlers.NotFoundHandler)

	return &testServer{app: app, db: db, admin: admin, driver: driver, other: other, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, cookie string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: cookie})
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/api/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, middleware.APIVersion, resp.Header.Get("X-Api-Version"))

	var result services.HealthCheckResult
	decode(t, resp, &result)
	assert.Equal(t, "healthy", result.Status)
}

func TestUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("X-Api-Version", "2.0.0")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCarRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		cookie string
		status int
	}{
		{"", fiber.StatusForbidden},
		{"session-bogus", fiber.StatusForbidden},
		{"session-unknown", fiber.StatusForbidden},
		{"session-banned", fiber.StatusForbidden},
		{"session-driver", fiber.StatusForbidden},
		{"session-admin", fiber.StatusOK},
	}
	for _, tc := range cases {
		resp := s.do(t, "GET", "/api/cars", tc.cookie, nil)
		assert.Equal(t, tc.status, resp.StatusCode, "cookie %q", tc.cookie)
	}
}

func TestCarLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{
		"plate":    "AA1111",
		"user_ids": []interface{}{s.driver.ID, itoa(s.admin.ID)},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var added repository.CarView
	decode(t, resp, &added)
	assert.Equal(t, []uint{s.driver.ID, s.admin.ID}, added.UserIDs)

	resp = s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"plate": "AA1111"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var dup utils.ErrorResponseStruct
	decode(t, resp, &dup)
	assert.Equal(t, "duplicateKey", dup.Type)

	resp = s.do(t, "PATCH", "/api/cars/AA1111", "session-admin", map[string]interface{}{"plate": "BB2222"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated repository.CarView
	decode(t, resp, &updated)
	assert.Equal(t, "BB2222", updated.Plate)
	assert.Len(t, updated.UserIDs, 2)

	resp = s.do(t, "GET", "/api/cars/AA1111", "session-admin", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "GET", "/api/cars/BB2222/exists", "session-admin", nil)
	var exists utils.ExistsResponseStruct
	decode(t, resp, &exists)
	assert.True(t, exists.Exists)

	resp = s.do(t, "GET", "/api/cars/BB2222/users", "session-admin", nil)
	var linked []models.User
	decode(t, resp, &linked)
	assert.Len(t, linked, 2)

	resp = s.do(t, "POST", "/api/cars/BB2222/ban", "session-admin", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "DELETE", "/api/cars/BB2222", "session-admin", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = s.do(t, "DELETE", "/api/cars/BB2222", "session-admin", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = s.do(t, "POST", "/api/cars/BB2222/ban", "session-admin", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAddCarWithMissingUser(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{
		"plate":    "CC3333",
		"user_ids": 999,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "GET", "/api/cars/CC3333/exists", "session-admin", nil)
	var exists utils.ExistsResponseStruct
	decode(t, resp, &exists)
	assert.False(t, exists.Exists)
}

func TestAddCarValidation(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"ban": true})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.Equal(t, "validation", body.Type)
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/api/users/me", "session-driver", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me models.User
	decode(t, resp, &me)
	assert.Equal(t, s.driver.Email, me.Email)

	resp = s.do(t, "GET", "/api/users/4242", "session-driver", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "GET", "/api/users/abc", "session-driver", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, "POST", "/api/users/"+itoa(s.other.ID)+"/ban", "session-driver", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, "POST", "/api/users/"+itoa(s.other.ID)+"/ban", "session-admin", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "GET", "/api/users/me", "session-other", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "PATCH", "/api/users/me", "session-driver", map[string]interface{}{"username": "driver one"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me models.User
	decode(t, resp, &me)
	assert.Equal(t, s.driver.ID, me.ID)
	assert.Equal(t, "driver one", me.Username)

	resp = s.do(t, "GET", "/api/users/"+itoa(s.driver.ID), "session-other", nil)
	var profile models.User
	decode(t, resp, &profile)
	assert.Equal(t, "driver one", profile.Username)

	resp = s.do(t, "PATCH", "/api/users/me", "", map[string]interface{}{"username": "nobody"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestBindChatID(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/users/bind_chat_id", "session-driver", map[string]interface{}{
		"email":   s.driver.Email,
		"chat_id": 777,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored models.User
	require.NoError(t, s.db.First(&stored, s.driver.ID).Error)
	require.NotNil(t, stored.ChatID)
	assert.Equal(t, int64(777), *stored.ChatID)

	resp = s.do(t, "POST", "/api/users/bind_chat_id", "session-other", map[string]interface{}{
		"email":   s.driver.Email,
		"chat_id": 1,
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, "POST", "/api/users/bind_chat_id", "session-admin", map[string]interface{}{
		"email":   s.other.Email,
		"chat_id": 2,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "POST", "/api/users/bind_chat_id", "session-admin", map[string]interface{}{
		"email":   "ghost@example.com",
		"chat_id": 3,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "POST", "/api/users/bind_chat_id", "session-admin", map[string]interface{}{
		"email": s.other.Email,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListUserCarsOwnerOrAdmin(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{
		"plate":    "MINE1",
		"user_ids": []uint{s.driver.ID},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	path := "/api/users/" + itoa(s.driver.ID) + "/cars"

	resp = s.do(t, "GET", path, "session-driver", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cars []repository.CarView
	decode(t, resp, &cars)
	require.Len(t, cars, 1)
	assert.Equal(t, "MINE1", cars[0].Plate)

	resp = s.do(t, "GET", path, "session-other", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, "GET", path, "session-admin", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "GET", "/api/users/9999/cars", "session-admin", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHistoryFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/history/entry/XX0001/img-1", "", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var entry models.History
	decode(t, resp, &entry)
	assert.Nil(t, entry.CarID)
	assert.Equal(t, 9, *entry.NumberFreeSpaces)

	resp = s.do(t, "POST", "/api/history/entry/XX0001/img-2", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, "GET", "/api/history/unresolved", "", nil)
	var unresolved []models.History
	decode(t, resp, &unresolved)
	assert.Len(t, unresolved, 1)

	resp = s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"plate": "XX0001"})
	var car repository.CarView
	decode(t, resp, &car)

	resp = s.do(t, "PATCH", "/api/history/car/XX0001", "session-admin", map[string]interface{}{"car_id": car.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "POST", "/api/history/exit/XX0001/img-3", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var exit models.History
	decode(t, resp, &exit)
	require.NotNil(t, exit.ExitTime)
	assert.Equal(t, "img-3", *exit.ExitImageID)

	resp = s.do(t, "POST", "/api/history/exit/XX0001/img-4", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "PATCH", "/api/history/paid/XX0001", "session-driver", map[string]interface{}{"paid": true})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, "PATCH", "/api/history/paid/XX0001", "session-admin", map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, "PATCH", "/api/history/paid/XX0001", "session-admin", map[string]interface{}{"paid": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "GET", "/api/history/unpaid", "", nil)
	var unpaid []models.History
	decode(t, resp, &unpaid)
	assert.Empty(t, unpaid)

	resp = s.do(t, "PATCH", "/api/history/paid/NOPE", "session-admin", map[string]interface{}{"paid": true})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEncodedPlates(t *testing.T) {
	s := newTestServer(t)

	for _, plate := range []string{"АА1111ВВ", "AB 123"} {
		resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"plate": plate})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, plate)
		var car repository.CarView
		decode(t, resp, &car)

		escaped := url.PathEscape(plate)

		resp = s.do(t, "GET", "/api/cars/"+escaped, "session-admin", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, plate)
		var found repository.CarView
		decode(t, resp, &found)
		assert.Equal(t, plate, found.Plate)

		resp = s.do(t, "POST", "/api/history/entry/"+escaped+"/img-in", "", nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, plate)
		var entry models.History
		decode(t, resp, &entry)
		assert.Equal(t, plate, entry.Plate)
		require.NotNil(t, entry.CarID, plate)
		assert.Equal(t, car.ID, *entry.CarID)

		var stored models.History
		require.NoError(t, s.db.First(&stored, entry.ID).Error)
		assert.Equal(t, plate, stored.Plate)

		resp = s.do(t, "POST", "/api/cars/"+escaped+"/ban", "session-admin", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, plate)

		resp = s.do(t, "DELETE", "/api/cars/"+escaped, "session-admin", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, plate)
	}
}

func TestEntryRejectsBannedCar(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"plate": "BAD1", "ban": true})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = s.do(t, "POST", "/api/history/entry/BAD1/img", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.Equal(t, "banned", body.Type)
}

func readCSV(t *testing.T, resp *http.Response) [][]string {
	t.Helper()
	defer resp.Body.Close()
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportPeriod(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/history/entry/AA1111/img", "", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = s.do(t, "GET", "/api/history/period/2000-01-01/2100-12-31", "session-admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), services.ExportFileName)
	records := readCSV(t, resp)
	require.Len(t, records, 2)
	assert.Equal(t, services.HistoryColumns, records[0])
	assert.Equal(t, "AA1111", records[1][1])

	resp = s.do(t, "GET", "/api/history/period/2000-01-01/2000-01-01", "session-admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, readCSV(t, resp), 1)

	resp = s.do(t, "GET", "/api/history/period/yesterday/2100-12-31", "session-admin", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.Equal(t, services.InvalidDateMessage, body.Message)

	resp = s.do(t, "GET", "/api/history/period/2000-01-01/2100-12-31", "session-driver", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestExportPeriodForCar(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{
		"plate":    "MINE1",
		"user_ids": []uint{s.driver.ID},
	})
	var car repository.CarView
	decode(t, resp, &car)

	resp = s.do(t, "POST", "/api/history/entry/MINE1/img", "", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = s.do(t, "POST", "/api/history/entry/OTHER2/img", "", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	path := "/api/history/period/2000-01-01/2100-12-31/" + itoa(car.ID)

	resp = s.do(t, "GET", path, "session-driver", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	records := readCSV(t, resp)
	require.Len(t, records, 2)
	assert.Equal(t, "MINE1", records[1][1])

	resp = s.do(t, "GET", path, "session-other", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, "GET", path, "session-admin", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "POST", "/api/cars", "session-admin", map[string]interface{}{"plate": "LONELY1"})
	var lonely repository.CarView
	decode(t, resp, &lonely)

	resp = s.do(t, "GET", "/api/history/period/2000-01-01/2100-12-31/"+itoa(lonely.ID), "session-admin", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body utils.ErrorResponseStruct
	decode(t, resp, &body)
	assert.Equal(t, "No user found with car "+itoa(lonely.ID), body.Message)

	resp = s.do(t, "GET", "/api/history/period/2000-01-01/2100-12-31/999999", "session-driver", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/api/nothing/here", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
