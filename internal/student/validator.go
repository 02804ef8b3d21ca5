package student

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validation messages, returned to the caller in check order: code, name,
// password. These are user-facing; store failures travel separately as
// real errors.
const (
	MsgCodeRequired     = "student code is required"
	MsgCodeExists       = "that student code is already registered"
	MsgNameRequired     = "name is required"
	MsgPasswordRequired = "password is required"
)

// CodeCounter is the narrow store dependency the duplicate-code rule needs.
// Both Repository and Service satisfy it.
type CodeCounter interface {
	CountByCode(ctx context.Context, code string) (int, error)
}

type Validator struct {
	counter  CodeCounter
	validate *validator.Validate
}

func NewValidator(counter CodeCounter) *Validator {
	return &Validator{
		counter:  counter,
		validate: validator.New(),
	}
}

// Validate evaluates the rules against a candidate record and collects every
// applicable message rather than stopping at the first. The password argument
// is the plaintext as supplied by the caller; the candidate already carries
// the hashed credential.
//
// checkCodeDuplicate is set by the service only when the code is newly set or
// changed; a candidate with an empty code skips the duplicate lookup. The
// presence check on the password runs only when checkPasswordPresence is set
// (create, or an update that supplies a new password).
func (v *Validator) Validate(ctx context.Context, candidate *Student, password string, checkCodeDuplicate, checkPasswordPresence bool) ([]string, error) {
	var messages []string

	if err := v.validate.Var(candidate.Code, "required"); err != nil {
		messages = append(messages, MsgCodeRequired)
	} else if checkCodeDuplicate {
		count, err := v.counter.CountByCode(ctx, candidate.Code)
		if err != nil {
			return nil, fmt.Errorf("duplicate code check: %w", err)
		}
		if count > 0 {
			messages = append(messages, MsgCodeExists)
		}
	}

	if err := v.validate.Var(candidate.Name, "required"); err != nil {
		messages = append(messages, MsgNameRequired)
	}

	if checkPasswordPresence {
		if err := v.validate.Var(password, "required"); err != nil {
			messages = append(messages, MsgPasswordRequired)
		}
	}

	return messages, nil
}
