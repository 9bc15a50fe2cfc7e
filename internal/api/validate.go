package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	notBlankTag    = "notblank"
	elementTypeTag = "element_type"
	templateTag    = "template"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(elementTypeTag, elementTypeValidation)
	_ = validate.RegisterValidation(templateTag, templateValidation)
	registerCustomTranslations(notBlankTag, elementTypeTag, templateTag)
}

// requestValidator plugs the validator into echo.Context.Validate.
type requestValidator struct{}

func (requestValidator) Validate(i any) error {
	return validate.Struct(i)
}

func registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomErrs)
	}
}

func translateCustomErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case elementTypeTag:
		return "unknown element type"
	case templateTag:
		return "unknown template, one of " + strings.Join(builder.TemplateNames(), ", ")
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func elementTypeValidation(fl validator.FieldLevel) bool {
	return domain.ElementType(fl.Field().String()).Valid()
}

func templateValidation(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, known := range builder.TemplateNames() {
		if name == known {
			return true
		}
	}
	return false
}
