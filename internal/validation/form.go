package validation

import (
	"errors"
	"strings"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
)

// Mode selects which password rules a form is checked against.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// FieldPasswordConfirm is the error key for the repeated password.
const FieldPasswordConfirm = "passwordConfirm"

// UserForm is the client-side state of the create/edit form.
type UserForm struct {
	Name            string
	Email           string
	Registration    string
	Password        string
	PasswordConfirm string
}

// Trimmed returns the form with surrounding whitespace removed from the text
// fields. Passwords are kept verbatim.
func (f UserForm) Trimmed() UserForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Registration = strings.TrimSpace(f.Registration)
	return f
}

// CreateRequest builds the create payload from the trimmed form.
func (f UserForm) CreateRequest() models.CreateUserRequest {
	t := f.Trimmed()
	return models.CreateUserRequest{
		Name:         t.Name,
		Email:        t.Email,
		Registration: t.Registration,
		Password:     t.Password,
	}
}

// UpdateRequest builds the update payload from the trimmed form. The
// password is included only when it was typed.
func (f UserForm) UpdateRequest() models.UpdateUserRequest {
	t := f.Trimmed()
	req := models.UpdateUserRequest{
		Name:         &t.Name,
		Email:        &t.Email,
		Registration: &t.Registration,
	}
	if t.Password != "" {
		req.Password = &t.Password
	}
	return req
}

// CheckForm maps the form state to field errors. An empty map means the form
// can be submitted. It has no side effects and can be called on every edit.
func (v *Validator) CheckForm(f UserForm, mode Mode) map[string]string {
	errs := make(map[string]string)

	t := f.Trimmed()
	// Text fields are always required in the form, also when editing.
	base := models.CreateUserRequest{
		Name:         t.Name,
		Email:        t.Email,
		Registration: t.Registration,
	}
	if err := v.StructExcept(base, "Password"); err != nil {
		mergeFields(errs, err)
	}

	passwordTyped := f.Password != "" || f.PasswordConfirm != ""
	if mode == ModeCreate || passwordTyped {
		req := models.UpdateUserRequest{Password: &f.Password}
		if f.Password == "" {
			errs["password"] = "password is required"
		} else if err := v.Struct(req); err != nil {
			mergeFields(errs, err)
		}
		switch {
		case f.PasswordConfirm == "":
			errs[FieldPasswordConfirm] = "repeat the password"
		case f.PasswordConfirm != f.Password:
			errs[FieldPasswordConfirm] = "passwords do not match"
		}
	}

	return errs
}

func mergeFields(dst map[string]string, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		for k, msg := range verr.Fields {
			dst[k] = msg
		}
		return
	}
	dst["form"] = err.Error()
}
