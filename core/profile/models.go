package profile

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pinkconnect/core"
)

// Roles
const (
	RoleParent  = "parent"
	RoleTeacher = "teacher"

	// DefaultRole is given to profiles created on first sign-in.
	DefaultRole = RoleParent
)

var AllRoles = []string{RoleParent, RoleTeacher}

// ValidRole reports whether role is one of AllRoles.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Profile is the application-level identity of an authenticated subject.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  *string   `json:"full_name" db:"full_name"`
	Role      string    `json:"role" db:"role"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"`
	Phone     *string   `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (p Profile) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Profile) IsParent() bool  { return p.Role == RoleParent }

// DisplayName returns the full name, or the email when no name was given.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// NewProfile contains information needed to create a new Profile.
type NewProfile struct {
	ID        string  `json:"id" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	FullName  *string `json:"full_name"`
	Role      string  `json:"role" validate:"omitempty,profilerole"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
	Phone     *string `json:"phone"`
}

// Validate cleans np and checks it; an empty Role becomes DefaultRole.
func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.ID = core.CleanString(np.ID)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Role = core.CleanString(np.Role, true /* lower */)
	if np.FullName != nil {
		np.FullName = core.StringPtr(core.CleanString(*np.FullName))
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Role == "" {
		np.Role = DefaultRole
	}
	return nil
}
