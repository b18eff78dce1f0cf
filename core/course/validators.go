package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

var (
	levelTag  = "level"
	levelText = "{0} must be one of Beginner, Intermediate or Advanced"

	lessonIDsTag  = "lessonids"
	lessonIDsText = "{0} must not repeat a lesson id"
)

// InitValidators registers the course validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)
	_ = validate.RegisterValidation(lessonIDsTag, lessonIDsValidation)
	core.RegisterCustomTranslation(validate, translator, lessonIDsTag, lessonIDsText)
}

func levelValidation(fl validator.FieldLevel) bool {
	lvl := fl.Field().String()
	for _, l := range Levels {
		if l == lvl {
			return true
		}
	}
	return false
}

// lessonIDsValidation rejects lesson lists sending the same ID twice. New lessons have no ID.
func lessonIDsValidation(fl validator.FieldLevel) bool {
	lessons, ok := fl.Field().Interface().([]NewLesson)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(lessons))
	for _, nl := range lessons {
		if nl.ID == "" {
			continue
		}
		if _, dup := seen[nl.ID]; dup {
			return false
		}
		seen[nl.ID] = struct{}{}
	}
	return true
}
