package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

const tempID = "temp_3f2b8c1e-9a4d-4c6e-8b7a-1d2e3f4a5b6c"

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func expectIdentityScope(mock sqlmock.Sqlmock, ownerID string) {
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config`).
		WithArgs(settingActiveIdentity, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestPinRepo_ReassignOwner(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)

	expectIdentityScope(mock, tempID)
	mock.ExpectExec(`SELECT set_config`).
		WithArgs(settingMergeTarget, "42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "pins" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	// Act
	n, err := repo.ReassignOwner(context.Background(), tempID, "42")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "pins", repo.RecordType())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionRepo_ReassignOwnerFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCollectionRepo(db)

	expectIdentityScope(mock, tempID)
	mock.ExpectExec(`SELECT set_config`).
		WithArgs(settingMergeTarget, "42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "collections" SET`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	n, err := repo.ReassignOwner(context.Background(), tempID, "42")

	assert.Error(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "collections", repo.RecordType())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinRepo_ListByOwnerRunsInIdentityScope(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	owner := entity.Owner{OwnerID: tempID, OwnerKind: entity.OwnerTemporary}
	now := time.Now()

	expectIdentityScope(mock, tempID)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "pins"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "owner_kind", "listing_id", "note", "created_at", "updated_at"}).
			AddRow(1, tempID, "temporary", "lst-1", "", now, now).
			AddRow(2, tempID, "temporary", "lst-2", "corner flat", now, now))
	mock.ExpectCommit()

	pins, err := repo.ListByOwner(context.Background(), owner)

	require.NoError(t, err)
	require.Len(t, pins, 2)
	assert.Equal(t, "lst-2", pins[1].ListingID)
	assert.Equal(t, entity.OwnerTemporary, pins[0].OwnerKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinRepo_DeleteMissingIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	owner := entity.Owner{OwnerID: "42", OwnerKind: entity.OwnerPermanent}

	expectIdentityScope(mock, "42")
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "pins"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), owner, 99)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRecordRepo_CreateIfAbsent(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		created bool
	}{
		{"inserted", sqlmock.NewRows([]string{"id"}).AddRow(1), true},
		{"conflict", sqlmock.NewRows([]string{"id"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewMergeRecordRepo(db)
			mock.ExpectQuery(`INSERT INTO "merge_records" .* ON CONFLICT \("temporary_id"\) DO NOTHING`).
				WillReturnRows(tt.rows)

			created, err := repo.CreateIfAbsent(context.Background(), &entity.MergeRecord{
				TemporaryID:  tempID,
				PermanentID:  "42",
				Success:      true,
				MergedCounts: map[string]int{"pins": 3},
				Failures:     []string{},
			})

			require.NoError(t, err)
			assert.Equal(t, tt.created, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMergeRecordRepo_GetByTemporaryIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMergeRecordRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "merge_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec, err := repo.GetByTemporaryID(context.Background(), tempID)

	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTemporaryUserRepo_RegisterAndTouch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemporaryUserRepo(db)

	mock.ExpectExec(`INSERT INTO temporary_users .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(tempID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "temporary_users" SET "last_active_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "temporary_users" SET "last_active_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Register(context.Background(), tempID))
	require.NoError(t, repo.Touch(context.Background(), tempID))
	err := repo.Touch(context.Background(), "temp_unknown")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "Незарегистрированный пользователь - ErrNotFound")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_ReadWriteRemove(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChannelRepo(db)
	ctx := context.Background()
	key := "temp_user_id:device-1"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "identity_channel_values"`)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))
	mock.ExpectExec(`INSERT INTO identity_channel_values .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs(key, tempID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "identity_channel_values"`)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).AddRow(key, tempID, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "identity_channel_values"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Read(ctx, key)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, repo.Write(ctx, key, tempID, time.Hour))
	v, err := repo.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, tempID, v)
	require.NoError(t, repo.Remove(ctx, key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicateEmailIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := repo.Create(context.Background(), &entity.User{Email: " Buyer@Example.com ", Password: "password123"})

	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
