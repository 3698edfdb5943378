package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the shared validator behind every request struct in this API. Custom
// tag registrations belong in init(), before the first call to Struct.
var v = validator.New()

// Struct checks a request struct against its validate tags and flattens the
// per-field failures into one readable error, ready to wrap into the
// validation sentinel at the call site.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
