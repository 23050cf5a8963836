package validation

import (
	"errors"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct runs the validate tags of s. On failure it returns an error whose
// text is the first failing field's msg tag, or a generic message.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.New("invalid request")
	}

	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if field, ok := t.FieldByName(verrs[0].StructField()); ok {
		if msg := field.Tag.Get("msg"); msg != "" {
			return errors.New(msg)
		}
	}
	return errors.New("invalid " + verrs[0].Field())
}
