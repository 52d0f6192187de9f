package profile

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pinkconnect/core"
)

var (
	profileRoleTag  = "profilerole"
	profileRoleText = "role must be one of parent or teacher"
)

// InitValidators registers the profile validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(profileRoleTag, profileRoleValidation)
	core.RegisterCustomTranslation(validate, translator, profileRoleTag, profileRoleText)
}

func profileRoleValidation(fl validator.FieldLevel) bool {
	return ValidRole(fl.Field().String())
}
