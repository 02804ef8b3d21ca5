package student

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"student-records/internal/secure"
)

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid code or password")
	ErrDuplicateCode      = errors.New("student code already taken")
)

// DefaultPerPage is the listing page size when the config does not set one.
const DefaultPerPage = 15

// Producer publishes record lifecycle events after successful writes.
// A nil Producer disables publishing.
type Producer interface {
	SendMessage(ctx context.Context, value interface{}) error
}

type Service interface {
	ListPage(ctx context.Context, page int) ([]Student, int, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	Authenticate(ctx context.Context, code, password, pepper string) (*Student, error)
	Create(ctx context.Context, in Input, pepper string) ([]string, error)
	Update(ctx context.Context, id int, in Input, pepper string) ([]string, error)
	Destroy(ctx context.Context, id int) error
	CountByCode(ctx context.Context, code string) (int, error)
}

type service struct {
	repo      Repository
	validator *Validator
	producer  Producer
	logger    *slog.Logger
	perPage   int
}

func NewService(repo Repository, producer Producer, logger *slog.Logger, perPage int) Service {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	s := &service{
		repo:     repo,
		producer: producer,
		logger:   logger,
		perPage:  perPage,
	}
	// The validator reaches the store through the service's own
	// CountByCode pass-through.
	s.validator = NewValidator(s)
	return s
}

// ListPage returns one page of records, newest first, together with the
// total record count. Pure read, no side effects.
func (s *service) ListPage(ctx context.Context, page int) ([]Student, int, error) {
	if page < 1 {
		return nil, 0, ErrInvalidInput
	}

	students, err := s.repo.ListPage(ctx, page, s.perPage)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (s *service) GetByID(ctx context.Context, id int) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// Authenticate hashes the plaintext with the pepper and looks the record up
// among active rows by exact code+credential match. A blank code or password
// fails immediately without touching the store. The result doubles as a
// boolean login check: ErrInvalidCredentials means the login failed.
func (s *service) Authenticate(ctx context.Context, code, password, pepper string) (*Student, error) {
	if code == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	stud, err := s.repo.GetActiveByCodeAndPassword(ctx, code, secure.HashPassword(password, pepper))
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return stud, nil
}

// Create validates and inserts a new record. A non-empty slice of messages
// means validation failed and nothing was written; a nil slice with a nil
// error means the record is in. The plaintext password is hashed before the
// candidate is built and never stored or logged as given.
func (s *service) Create(ctx context.Context, in Input, pepper string) ([]string, error) {
	now := time.Now()
	candidate := &Student{
		Code:      in.Code,
		Name:      in.Name,
		Password:  secure.HashPassword(in.Password, pepper),
		Admin:     in.Admin,
		CreatedAt: now,
		UpdatedAt: now,
		Deleted:   false,
	}

	messages, err := s.validator.Validate(ctx, candidate, in.Password, true, true)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	if _, err := s.repo.Insert(ctx, candidate); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			// Lost the race against another writer on the same code;
			// surface it the same way the validator would have.
			return []string{MsgCodeExists}, nil
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "student created", "id", candidate.ID, "code", candidate.Code)
	s.publish(ctx, EventCreated, candidate)

	return nil, nil
}

// Update loads the stored snapshot, applies the caller's patch and persists
// the merged record if it validates. The duplicate-code rule runs only when
// the code actually changes; a blank password keeps the stored credential.
// A missing id is a caller contract violation and comes back as
// ErrStudentNotFound.
func (s *service) Update(ctx context.Context, id int, in Input, pepper string) ([]string, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}

	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	checkCode, checkPassword := applyPatch(snapshot, in, func(plain string) string {
		return secure.HashPassword(plain, pepper)
	})
	snapshot.UpdatedAt = time.Now()

	messages, err := s.validator.Validate(ctx, snapshot, in.Password, checkCode, checkPassword)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	if err := s.repo.Update(ctx, snapshot); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return []string{MsgCodeExists}, nil
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "student updated", "id", snapshot.ID, "code", snapshot.Code)
	s.publish(ctx, EventUpdated, snapshot)

	return nil, nil
}

// Destroy soft-deletes the record: the delete flag goes up, updated_at is
// re-stamped, and the row stays in the table. No validation runs; deleting
// an already-deleted record just re-stamps updated_at.
func (s *service) Destroy(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}

	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	snapshot.UpdatedAt = time.Now()
	snapshot.Deleted = true

	if err := s.repo.Update(ctx, snapshot); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "student deleted", "id", snapshot.ID, "code", snapshot.Code)
	s.publish(ctx, EventDeleted, snapshot)

	return nil
}

func (s *service) CountByCode(ctx context.Context, code string) (int, error) {
	return s.repo.CountByCode(ctx, code)
}

// publish sends a lifecycle event. Publishing is best-effort: a broker
// failure is logged and does not fail the write that already committed.
func (s *service) publish(ctx context.Context, action string, stud *Student) {
	if s.producer == nil {
		return
	}

	event := Event{
		Action: action,
		ID:     stud.ID,
		Code:   stud.Code,
		Name:   stud.Name,
		At:     stud.UpdatedAt,
	}
	if err := s.producer.SendMessage(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish student event", "action", action, "id", stud.ID, "error", err)
	}
}
