package student

import (
	"time"

	"github.com/uptrace/bun"
)

// Student is a single record in the students table. The same type serves
// persistence and output; partial caller input comes in as Input instead.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	Code      string    `bun:"code,unique,notnull" json:"code"`
	Name      string    `bun:"name,notnull" json:"name"`
	Password  string    `bun:"password,notnull" json:"-"` // hashed+peppered credential, never in output
	Admin     bool      `bun:"admin_flag,notnull,default:false" json:"admin"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
	Deleted   bool      `bun:"delete_flag,notnull,default:false" json:"deleted"`
}

// Active reports whether the record has not been soft-deleted.
func (s *Student) Active() bool {
	return !s.Deleted
}

// Event is published after a successful create, update or destroy.
type Event struct {
	Action string    `json:"action"`
	ID     int       `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	At     time.Time `json:"at"`
}

const (
	EventCreated = "student.created"
	EventUpdated = "student.updated"
	EventDeleted = "student.deleted"
)
