package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parksense/parksense-api/internal/database/dbtest"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/parksense/parksense-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createUsers(t *testing.T, db *gorm.DB, n int) []uint {
	t.Helper()
	users := repository.NewUserRepository(db)
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		u := &models.User{Email: "driver" + string(rune('a'+i)) + "@example.com"}
		require.NoError(t, users.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func flexIDs(ids ...uint) types.FlexList[types.FlexID] {
	list := make(types.FlexList[types.FlexID], 0, len(ids))
	for _, id := range ids {
		list = append(list, types.FlexID(id))
	}
	return list
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestAddThenGetByPlate(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	added, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids[1], ids[0])})
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[1], ids[0]}, added.UserIDs)
	assert.False(t, added.Ban)

	got, err := cars.GetByPlate(ctx, "AA1111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.ElementsMatch(t, ids, got.UserIDs)
	assert.Equal(t, added.ID, got.ID)
}

func TestAddWithoutUsers(t *testing.T) {
	db := dbtest.Open(t)
	cars := repository.NewCarRepository(db)

	added, err := cars.Add(context.Background(), models.CarInput{Plate: "NOUSER1"})
	require.NoError(t, err)
	assert.NotNil(t, added.UserIDs)
	assert.Empty(t, added.UserIDs)
}

func TestAddCollapsesRepeatedUserIDs(t *testing.T) {
	db := dbtest.Open(t)
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 1)

	added, err := cars.Add(context.Background(), models.CarInput{Plate: "DUP1", UserIDs: flexIDs(ids[0], ids[0])})
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[0]}, added.UserIDs)
	assert.Equal(t, int64(1), countRows(t, db, &models.CarUser{}))
}

func TestAddDuplicatePlateDoesNotWrite(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 1)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids[0])})
	require.NoError(t, err)

	_, err = cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids[0])})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDuplicateKey))

	assert.Equal(t, int64(1), countRows(t, db, &models.Car{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.CarUser{}))
}

func TestAddPlateIsCaseSensitive(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)

	_, err := cars.Add(ctx, models.CarInput{Plate: "ab123"})
	require.NoError(t, err)

	got, err := cars.GetByPlate(ctx, "AB123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddWithMissingUserRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	_, err := cars.Add(ctx, models.CarInput{Plate: "CC3333", UserIDs: flexIDs(ids[0], 999, ids[1])})
	require.Error(t, err)

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Entity)
	assert.Equal(t, uint(999), notFound.Key)

	got, err := cars.GetByPlate(ctx, "CC3333")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(0), countRows(t, db, &models.Car{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.CarUser{}))
}

func TestAddRejectsEmptyPlate(t *testing.T) {
	db := dbtest.Open(t)
	cars := repository.NewCarRepository(db)

	_, err := cars.Add(context.Background(), models.CarInput{})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListAll(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)

	all, err := cars.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	ids := createUsers(t, db, 1)
	_, err = cars.Add(ctx, models.CarInput{Plate: "A1", UserIDs: flexIDs(ids[0])})
	require.NoError(t, err)
	_, err = cars.Add(ctx, models.CarInput{Plate: "B2"})
	require.NoError(t, err)

	all, err = cars.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A1", all[0].Plate)
	assert.Equal(t, []uint{ids[0]}, all[0].UserIDs)
	assert.Empty(t, all[1].UserIDs)
}

func TestUpdateChangesPlate(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids...)})
	require.NoError(t, err)

	updated, err := cars.Update(ctx, "AA1111", models.CarPatch{Plate: types.Some("BB2222")})
	require.NoError(t, err)
	assert.Equal(t, "BB2222", updated.Plate)
	assert.ElementsMatch(t, ids, updated.UserIDs)

	got, err := cars.GetByPlate(ctx, "BB2222")
	require.NoError(t, err)
	require.NotNil(t, got)

	old, err := cars.GetByPlate(ctx, "AA1111")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestUpdatePlateCollision(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)

	_, err := cars.Add(ctx, models.CarInput{Plate: "ONE1"})
	require.NoError(t, err)
	_, err = cars.Add(ctx, models.CarInput{Plate: "TWO2"})
	require.NoError(t, err)

	_, err = cars.Update(ctx, "ONE1", models.CarPatch{Plate: types.Some("TWO2")})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	// Keeping the same plate is not a collision
	_, err = cars.Update(ctx, "ONE1", models.CarPatch{Plate: types.Some("ONE1")})
	assert.NoError(t, err)
}

func TestUpdateReplacesUsers(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 3)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids[0], ids[1])})
	require.NoError(t, err)

	updated, err := cars.Update(ctx, "AA1111", models.CarPatch{UserIDs: types.Some(flexIDs(ids[2]))})
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[2]}, updated.UserIDs)
	assert.Equal(t, int64(1), countRows(t, db, &models.CarUser{}))
}

func TestUpdateWithEmptyUsersClearsAssociations(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids...)})
	require.NoError(t, err)

	updated, err := cars.Update(ctx, "AA1111", models.CarPatch{UserIDs: types.Some(flexIDs())})
	require.NoError(t, err)
	assert.Empty(t, updated.UserIDs)
	assert.Equal(t, int64(0), countRows(t, db, &models.CarUser{}))

	exists, err := cars.Exists(ctx, "AA1111")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpdateEmptyPatchIsNoop(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 1)

	added, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", Ban: true, UserIDs: flexIDs(ids[0])})
	require.NoError(t, err)

	var before models.Car
	require.NoError(t, db.First(&before, added.ID).Error)

	updated, err := cars.Update(ctx, "AA1111", models.CarPatch{})
	require.NoError(t, err)
	assert.Equal(t, *added, *updated)

	var after models.Car
	require.NoError(t, db.First(&after, added.ID).Error)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	_, err = cars.Update(ctx, "ZZ9999", models.CarPatch{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateWithMissingUserRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 1)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids[0])})
	require.NoError(t, err)

	_, err = cars.Update(ctx, "AA1111", models.CarPatch{
		Plate:   types.Some("ZZ9999"),
		UserIDs: types.Some(flexIDs(4242)),
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	got, err := cars.GetByPlate(ctx, "AA1111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []uint{ids[0]}, got.UserIDs)
}

func TestUpdateMissingCar(t *testing.T) {
	db := dbtest.Open(t)
	cars := repository.NewCarRepository(db)

	_, err := cars.Update(context.Background(), "NOPE", models.CarPatch{Ban: types.Some(true)})
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "car", notFound.Entity)
}

func TestUpdateBanFlag(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111"})
	require.NoError(t, err)

	updated, err := cars.Update(ctx, "AA1111", models.CarPatch{Ban: types.Some(true)})
	require.NoError(t, err)
	assert.True(t, updated.Ban)
}

func TestDeleteRemovesCarAndAssociations(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	history := repository.NewHistoryRepository(db, 10)
	ids := createUsers(t, db, 2)

	_, err := cars.Add(ctx, models.CarInput{Plate: "AA1111", UserIDs: flexIDs(ids...)})
	require.NoError(t, err)
	_, err = cars.Add(ctx, models.CarInput{Plate: "KEEP1", UserIDs: flexIDs(ids[0])})
	require.NoError(t, err)
	session, err := history.CreateEntry(ctx, "AA1111", "img-1")
	require.NoError(t, err)
	require.NotNil(t, session.CarID)

	require.NoError(t, cars.Delete(ctx, "AA1111"))

	exists, err := cars.Exists(ctx, "AA1111")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, int64(1), countRows(t, db, &models.CarUser{}))

	var detached models.History
	require.NoError(t, db.First(&detached, session.ID).Error)
	assert.Nil(t, detached.CarID)
	assert.Equal(t, "AA1111", detached.Plate)
}

func TestDeleteMissingCar(t *testing.T) {
	db := dbtest.Open(t)
	cars := repository.NewCarRepository(db)

	err := cars.Delete(context.Background(), "GHOST")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBan(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)

	found, err := cars.Ban(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = cars.Add(ctx, models.CarInput{Plate: "AA1111"})
	require.NoError(t, err)

	found, err = cars.Ban(ctx, "AA1111")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := cars.GetByPlate(ctx, "AA1111")
	require.NoError(t, err)
	assert.True(t, got.Ban)
}

func TestListByUser(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	_, err := cars.ListByUser(ctx, 777)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = cars.Add(ctx, models.CarInput{Plate: "A1", UserIDs: flexIDs(ids...)})
	require.NoError(t, err)
	_, err = cars.Add(ctx, models.CarInput{Plate: "B2", UserIDs: flexIDs(ids[1])})
	require.NoError(t, err)

	first, err := cars.ListByUser(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "A1", first[0].Plate)
	assert.ElementsMatch(t, ids, first[0].UserIDs)

	second, err := cars.ListByUser(ctx, ids[1])
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestListUsersByPlate(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	users, err := cars.ListUsersByPlate(ctx, "MISSING")
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = cars.Add(ctx, models.CarInput{Plate: "A1", UserIDs: flexIDs(ids[1], ids[0])})
	require.NoError(t, err)

	users, err = cars.ListUsersByPlate(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, ids[0], users[0].ID)
	assert.Equal(t, ids[1], users[1].ID)
}

func TestListCurrentlyParked(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	history := repository.NewHistoryRepository(db, 10)

	_, err := cars.Add(ctx, models.CarInput{Plate: "IN1"})
	require.NoError(t, err)
	_, err = cars.Add(ctx, models.CarInput{Plate: "OUT2"})
	require.NoError(t, err)

	_, err = history.CreateEntry(ctx, "IN1", "img-1")
	require.NoError(t, err)
	_, err = history.CreateEntry(ctx, "UNKNOWN9", "img-2")
	require.NoError(t, err)

	parked, err := cars.ListCurrentlyParked(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "IN1", parked[0].Plate)

	// A second open row for the same car must not duplicate it
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.History{Plate: "IN1", EntryTime: &now, CarID: &parked[0].ID}).Error)
	parked, err = cars.ListCurrentlyParked(ctx)
	require.NoError(t, err)
	assert.Len(t, parked, 1)

	require.NoError(t, db.Model(&models.History{}).Where("plate = ?", "IN1").Update("exit_time", now).Error)
	parked, err = cars.ListCurrentlyParked(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestOwnerUserID(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	cars := repository.NewCarRepository(db)
	ids := createUsers(t, db, 2)

	lonely, err := cars.Add(ctx, models.CarInput{Plate: "LONE"})
	require.NoError(t, err)
	owner, err := cars.OwnerUserID(ctx, lonely.ID)
	require.NoError(t, err)
	assert.Nil(t, owner)

	owned, err := cars.Add(ctx, models.CarInput{Plate: "OWNED", UserIDs: flexIDs(ids[1], ids[0])})
	require.NoError(t, err)
	owner, err = cars.OwnerUserID(ctx, owned.ID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, ids[0], *owner)
}
