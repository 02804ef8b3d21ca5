package student_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"student-records/internal/student"
	"student-records/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pepper = "test-pepper"

type capturingProducer struct {
	actions []string
}

func (p *capturingProducer) SendMessage(ctx context.Context, value interface{}) error {
	if event, ok := value.(student.Event); ok {
		p.actions = append(p.actions, event.Action)
	}
	return nil
}

func (p *capturingProducer) reset() {
	p.actions = nil
}

// racingRepository simulates a concurrent writer that commits a conflicting
// code between the duplicate check and the write: the count always comes
// back clean, leaving the unique index on students.code as the only guard.
type racingRepository struct {
	student.Repository
}

func (r *racingRepository) CountByCode(ctx context.Context, code string) (int, error) {
	return 0, nil
}

func TestStudentService_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*student.Student)(nil))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	repo := student.NewRepository(pgContainer.DB)
	events := &capturingProducer{}
	service := student.NewService(repo, events, logger, 0)

	ctx := context.Background()

	mustCreate := func(t *testing.T, code, name, password string) {
		t.Helper()
		messages, err := service.Create(ctx, student.Input{Code: code, Name: name, Password: password}, pepper)
		require.NoError(t, err)
		require.Empty(t, messages)
	}

	mustAuthenticate := func(t *testing.T, code, password string) *student.Student {
		t.Helper()
		stud, err := service.Authenticate(ctx, code, password, pepper)
		require.NoError(t, err)
		require.NotNil(t, stud)
		return stud
	}

	t.Run("Create_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")

		stud := mustAuthenticate(t, "S001", "password123")
		fetched, err := service.GetByID(ctx, stud.ID)
		require.NoError(t, err)
		assert.Equal(t, "S001", fetched.Code)
		assert.Equal(t, "John Doe", fetched.Name)
		assert.False(t, fetched.Deleted)
		assert.False(t, fetched.Admin)
		assert.NotEmpty(t, fetched.Password)
		assert.NotEqual(t, "password123", fetched.Password)
		assert.False(t, fetched.UpdatedAt.Before(fetched.CreatedAt))
	})

	t.Run("Create_DuplicateCode", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")

		messages, err := service.Create(ctx, student.Input{Code: "S001", Name: "Jane Doe", Password: "password456"}, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{student.MsgCodeExists}, messages)

		_, total, err := service.ListPage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("Create_ValidationErrors", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		messages, err := service.Create(ctx, student.Input{}, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{
			student.MsgCodeRequired,
			student.MsgNameRequired,
			student.MsgPasswordRequired,
		}, messages)

		_, total, err := service.ListPage(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("Authenticate", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")

		stud := mustAuthenticate(t, "S001", "password123")
		assert.Equal(t, "S001", stud.Code)

		_, err := service.Authenticate(ctx, "S001", "wrong-password", pepper)
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)

		_, err = service.Authenticate(ctx, "S001", "password123", "wrong-pepper")
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)

		_, err = service.Authenticate(ctx, "", "password123", pepper)
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)

		_, err = service.Authenticate(ctx, "S001", "", pepper)
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)
	})

	t.Run("Update_BlankPasswordKeepsCredential", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		stud := mustAuthenticate(t, "S001", "password123")

		in := student.Input{Code: "S001", Name: "John Q. Doe"}
		messages, err := service.Update(ctx, stud.ID, in, pepper)
		require.NoError(t, err)
		require.Empty(t, messages)

		// Old password still authenticates after a name-only update.
		updated := mustAuthenticate(t, "S001", "password123")
		assert.Equal(t, "John Q. Doe", updated.Name)
	})

	t.Run("Update_NewPasswordReplacesCredential", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		stud := mustAuthenticate(t, "S001", "password123")

		in := student.Input{Code: "S001", Name: "John Doe", Password: "password456"}
		messages, err := service.Update(ctx, stud.ID, in, pepper)
		require.NoError(t, err)
		require.Empty(t, messages)

		mustAuthenticate(t, "S001", "password456")
		_, err = service.Authenticate(ctx, "S001", "password123", pepper)
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)
	})

	t.Run("Update_DuplicateCode", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		mustCreate(t, "S002", "Jane Doe", "password456")
		jane := mustAuthenticate(t, "S002", "password456")

		// Taking another record's code fails validation.
		in := student.Input{Code: "S001", Name: "Jane Doe"}
		messages, err := service.Update(ctx, jane.ID, in, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{student.MsgCodeExists}, messages)

		// Keeping the current code does not trigger the duplicate check.
		in = student.Input{Code: "S002", Name: "Jane Q. Doe"}
		messages, err = service.Update(ctx, jane.ID, in, pepper)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		in := student.Input{Code: "S001", Name: "Ghost"}
		_, err := service.Update(ctx, 9999, in, pepper)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("Destroy", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		stud := mustAuthenticate(t, "S001", "password123")

		require.NoError(t, service.Destroy(ctx, stud.ID))

		// A soft-deleted record no longer authenticates...
		_, err := service.Authenticate(ctx, "S001", "password123", pepper)
		assert.ErrorIs(t, err, student.ErrInvalidCredentials)

		// ...but is still in the store with the flag up.
		deleted, err := service.GetByID(ctx, stud.ID)
		require.NoError(t, err)
		assert.True(t, deleted.Deleted)
		assert.False(t, deleted.UpdatedAt.Before(deleted.CreatedAt))

		// Deleting again just re-stamps updated_at.
		require.NoError(t, service.Destroy(ctx, stud.ID))
	})

	t.Run("Destroy_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		err := service.Destroy(ctx, 9999)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("ListPage_Pagination", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		for i := 1; i <= 20; i++ {
			mustCreate(t, fmt.Sprintf("S%03d", i), fmt.Sprintf("Student %d", i), "password123")
		}

		firstPage, total, err := service.ListPage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 20, total)
		require.Len(t, firstPage, 15)
		// Newest first: ids run 20 down to 6.
		assert.Equal(t, 20, firstPage[0].ID)
		assert.Equal(t, 6, firstPage[14].ID)

		secondPage, total, err := service.ListPage(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 20, total)
		require.Len(t, secondPage, 5)
		assert.Equal(t, 5, secondPage[0].ID)
		assert.Equal(t, 1, secondPage[4].ID)

		_, _, err = service.ListPage(ctx, 0)
		assert.ErrorIs(t, err, student.ErrInvalidInput)
	})

	t.Run("ListPage_IncludesDeleted", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		mustCreate(t, "S002", "Jane Doe", "password456")
		jane := mustAuthenticate(t, "S002", "password456")
		require.NoError(t, service.Destroy(ctx, jane.ID))

		page, total, err := service.ListPage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, page, 2)
	})

	t.Run("SoftDeletedCodeStaysReserved", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		stud := mustAuthenticate(t, "S001", "password123")
		require.NoError(t, service.Destroy(ctx, stud.ID))

		messages, err := service.Create(ctx, student.Input{Code: "S001", Name: "Jane Doe", Password: "password456"}, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{student.MsgCodeExists}, messages)
	})

	t.Run("Insert_DuplicateCodeTripsUniqueIndex", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")

		now := time.Now()
		_, err := repo.Insert(ctx, &student.Student{
			Code:      "S001",
			Name:      "Jane Doe",
			Password:  "some-credential",
			CreatedAt: now,
			UpdatedAt: now,
		})
		assert.ErrorIs(t, err, student.ErrDuplicateCode)
	})

	t.Run("Create_LostCodeRaceSurfacesDuplicateMessage", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")

		raceService := student.NewService(&racingRepository{Repository: repo}, nil, logger, 0)
		messages, err := raceService.Create(ctx, student.Input{Code: "S001", Name: "Jane Doe", Password: "password456"}, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{student.MsgCodeExists}, messages)

		// The losing insert left nothing behind.
		_, total, err := service.ListPage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("Update_LostCodeRaceSurfacesDuplicateMessage", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		mustCreate(t, "S001", "John Doe", "password123")
		mustCreate(t, "S002", "Jane Doe", "password456")
		jane := mustAuthenticate(t, "S002", "password456")

		raceService := student.NewService(&racingRepository{Repository: repo}, nil, logger, 0)
		in := student.Input{Code: "S001", Name: "Jane Doe"}
		messages, err := raceService.Update(ctx, jane.ID, in, pepper)
		require.NoError(t, err)
		assert.Equal(t, []string{student.MsgCodeExists}, messages)

		// The stored row kept its code.
		kept, err := service.GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, "S002", kept.Code)
	})

	t.Run("LifecycleEvents", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		events.reset()

		mustCreate(t, "S001", "John Doe", "password123")
		stud := mustAuthenticate(t, "S001", "password123")

		in := student.Input{Code: "S001", Name: "John Q. Doe"}
		messages, err := service.Update(ctx, stud.ID, in, pepper)
		require.NoError(t, err)
		require.Empty(t, messages)

		require.NoError(t, service.Destroy(ctx, stud.ID))

		assert.Equal(t, []string{
			student.EventCreated,
			student.EventUpdated,
			student.EventDeleted,
		}, events.actions)
	})
}
