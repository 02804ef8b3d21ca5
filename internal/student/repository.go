package student

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository interface {
	ListPage(ctx context.Context, page, perPage int) ([]Student, error)
	CountAll(ctx context.Context) (int, error)
	CountByCode(ctx context.Context, code string) (int, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	GetActiveByCodeAndPassword(ctx context.Context, code, password string) (*Student, error)
	Insert(ctx context.Context, student *Student) (*Student, error)
	Update(ctx context.Context, student *Student) error
}

type repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repository{
		db: db,
	}
}

// ListPage returns one page of records ordered by id descending, newest
// first. page is 1-based. Soft-deleted records are included; listings show
// the full history (see DESIGN.md).
func (r *repository) ListPage(ctx context.Context, page, perPage int) ([]Student, error) {
	var students []Student
	err := r.db.NewSelect().
		Model(&students).
		OrderExpr("id DESC").
		Limit(perPage).
		Offset(perPage * (page - 1)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repository) CountAll(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*Student)(nil)).Count(ctx)
}

// CountByCode counts records holding the code in any delete state. A freed
// code therefore stays reserved by its soft-deleted owner.
func (r *repository) CountByCode(ctx context.Context, code string) (int, error) {
	return r.db.NewSelect().
		Model((*Student)(nil)).
		Where("code = ?", code).
		Count(ctx)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// GetActiveByCodeAndPassword matches code and hashed credential exactly,
// restricted to records that have not been soft-deleted.
func (r *repository) GetActiveByCodeAndPassword(ctx context.Context, code, password string) (*Student, error) {
	student := new(Student)
	err := r.db.NewSelect().
		Model(student).
		Where("delete_flag = FALSE").
		Where("code = ?", code).
		Where("password = ?", password).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) Insert(ctx context.Context, student *Student) (*Student, error) {
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) Update(ctx context.Context, student *Student) error {
	result, err := r.db.NewUpdate().Model(student).WherePK().Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// isIntegrityViolation reports whether err is a Postgres constraint error.
// The only constraint a write can trip here is the unique index on code,
// the backstop for two concurrent writers passing the duplicate check.
func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
