package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeHash(plain string) string {
	return "hashed:" + plain
}

func snapshot() *Student {
	return &Student{
		ID:       7,
		Code:     "S001",
		Name:     "Old Name",
		Password: "stored-credential",
		Admin:    false,
	}
}

func TestApplyPatch(t *testing.T) {
	t.Run("BlankPasswordKeepsCredential", func(t *testing.T) {
		snap := snapshot()

		_, checkPassword := applyPatch(snap, Input{Code: "S001", Name: "New Name"}, fakeHash)

		assert.False(t, checkPassword)
		assert.Equal(t, "stored-credential", snap.Password)
	})

	t.Run("NewPasswordReplacesCredential", func(t *testing.T) {
		snap := snapshot()

		_, checkPassword := applyPatch(snap, Input{Code: "S001", Name: "Old Name", Password: "secret"}, fakeHash)

		assert.True(t, checkPassword)
		assert.Equal(t, "hashed:secret", snap.Password)
	})

	t.Run("ChangedCodeTogglesDuplicateCheck", func(t *testing.T) {
		snap := snapshot()

		checkCode, _ := applyPatch(snap, Input{Code: "S002", Name: "Old Name"}, fakeHash)

		assert.True(t, checkCode)
		assert.Equal(t, "S002", snap.Code)
	})

	t.Run("UnchangedCodeSkipsDuplicateCheck", func(t *testing.T) {
		snap := snapshot()

		checkCode, _ := applyPatch(snap, Input{Code: "S001", Name: "Old Name"}, fakeHash)

		assert.False(t, checkCode)
		assert.Equal(t, "S001", snap.Code)
	})

	t.Run("NameAndAdminAlwaysOverwritten", func(t *testing.T) {
		snap := snapshot()

		applyPatch(snap, Input{Code: "S001", Name: "New Name", Admin: true}, fakeHash)

		assert.Equal(t, "New Name", snap.Name)
		assert.True(t, snap.Admin)
	})
}
