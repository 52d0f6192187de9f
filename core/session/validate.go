package session

import (
	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/profile"
)

// forms checked before any remote call
type (
	credentialsForm struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	signUpForm struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		FullName string `json:"full_name"`
		Role     string `json:"role" validate:"omitempty,profilerole"`
	}

	emailForm struct {
		Email string `json:"email" validate:"required,email"`
	}

	passwordForm struct {
		Password string `json:"password" validate:"required,min=6"`
	}
)

func (m *Manager) check(form interface{}) error {
	if err := m.validate.Struct(form); err != nil {
		return core.TranslateValidationErrors(err, m.translator)
	}
	return nil
}

func cleanEmail(email string) string {
	return core.CleanString(email, true /* lower */)
}

func cleanRole(role string) string {
	role = core.CleanString(role, true /* lower */)
	if role == "" {
		return profile.DefaultRole
	}
	return role
}
