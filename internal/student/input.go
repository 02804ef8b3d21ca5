package student

// Input is the record-shaped bag of caller-supplied fields for create and
// update. Fields are already type-coerced by the caller; blank strings mean
// "not supplied" where the merge rules allow it. Password is plaintext here
// and is hashed before it ever reaches a Student.
type Input struct {
	Code     string
	Name     string
	Password string
	Admin    bool
}

// applyPatch overlays caller input onto a stored snapshot.
//
// Merge rules:
//   - Code is replaced only when it differs from the stored value; a change
//     turns the duplicate-code validation on.
//   - A non-empty password is hashed and replaces the stored credential,
//     turning the password presence check on. A blank password keeps the
//     stored credential untouched.
//   - Name and Admin are always overwritten.
//
// The returned flags feed Validator.Validate.
func applyPatch(snap *Student, in Input, hash func(plain string) string) (checkCode, checkPassword bool) {
	if snap.Code != in.Code {
		snap.Code = in.Code
		checkCode = true
	}

	if in.Password != "" {
		snap.Password = hash(in.Password)
		checkPassword = true
	}

	snap.Name = in.Name
	snap.Admin = in.Admin

	return checkCode, checkPassword
}
