package lab

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/nbkrcse/labtrack/core"
)

var (
	vivaOptionsTag  = "vivaoptions"
	vivaOptionsText = fmt.Sprintf("exactly %d non-blank options are required", OptionsPerQuestion)

	correctIndexTag  = "correctindex"
	correctIndexText = "correct option index must refer to one of the options"
)

// InitValidators registers the lab validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(vivaOptionsTag, vivaOptionsValidation)
	core.RegisterCustomTranslation(validate, translator, vivaOptionsTag, vivaOptionsText)

	validate.RegisterStructValidation(questionStructValidation, NewVivaQuestion{}, UpdateVivaQuestion{})
	core.RegisterCustomTranslation(validate, translator, correctIndexTag, correctIndexText)
}

func vivaOptionsValidation(fl validator.FieldLevel) bool {
	opts, ok := fl.Field().Interface().([]string)
	if !ok || len(opts) != OptionsPerQuestion {
		return false
	}
	for _, opt := range opts {
		if strings.TrimSpace(opt) == "" {
			return false
		}
	}
	return true
}

// questionStructValidation checks that CorrectOptionIndex is a valid index into Options.
func questionStructValidation(sl validator.StructLevel) {
	var (
		idx  int
		opts []string
	)
	switch q := sl.Current().Interface().(type) {
	case NewVivaQuestion:
		idx, opts = q.CorrectOptionIndex, q.Options
	case UpdateVivaQuestion:
		idx, opts = q.CorrectOptionIndex, q.Options
	default:
		return
	}
	if idx < 0 || idx >= len(opts) {
		sl.ReportError(idx, "correct_option_index", "CorrectOptionIndex", correctIndexTag, "")
	}
}
