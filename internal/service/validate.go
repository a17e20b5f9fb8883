package service

import (
	"errors"
	"reflect"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// requestValidator checks api messages against their struct tags and
// renders failures as readable English.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	eng := en.New()
	uni := ut.New(eng, eng)
	translator, found := uni.GetTranslator("en")
	if !found {
		panic("service: english translator not found")
	}
	if err := en_translations.RegisterDefaultTranslations(v, translator); err != nil {
		panic(err)
	}
	return &requestValidator{validate: v, translator: translator}
}

var requests = newRequestValidator()

// check returns an InvalidArgument error describing every failed field.
func (r *requestValidator) check(msg any) error {
	err := r.validate.Struct(msg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		msgs[i] = fe.Translate(r.translator)
	}
	return connect.NewError(connect.CodeInvalidArgument, errors.New(strings.Join(msgs, "; ")))
}
