package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
)

// User is an account of the identity provider.
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash []byte     `json:"-" db:"password_hash"`
	FullName     string     `json:"full_name" db:"full_name"`
	Role         string     `json:"role" db:"role"`
	ConfirmedAt  *time.Time `json:"confirmed_at" db:"confirmed_at"` // UTC
	LastLogin    *time.Time `json:"last_login" db:"last_login"`     // UTC
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`     // UTC
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`     // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}

func (u *User) Confirm(at time.Time) {
	at = at.UTC()
	u.ConfirmedAt = &at
}

// Identity returns the provider view of u sent to clients.
func (u User) Identity() identity.User {
	return identity.User{
		ID:          u.ID,
		Email:       u.Email,
		ConfirmedAt: u.ConfirmedAt,
		LastSignIn:  u.LastLogin,
		Metadata:    identity.Attributes{FullName: u.FullName, Role: u.Role}.Map(),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// NewUser contains information needed to sign up a new User.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"omitempty,oneof=parent teacher"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

// UpdatePassword is the payload of an authenticated password change.
type UpdatePassword struct {
	Email    string `json:"-"`
	FullName string `json:"-"`
	Password string `json:"password" validate:"required"`
}

func (up UpdatePassword) Validate(validate *validator.Validate) error { return validate.Struct(up) }

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type ConfirmEmail struct {
	Token string `json:"token" validate:"required"`
	UID   string `json:"uid" validate:"required"`
}

func (ce ConfirmEmail) Validate(validate *validator.Validate) error { return validate.Struct(ce) }
