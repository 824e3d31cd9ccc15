package resource

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Shared validator instance; it caches struct metadata.
var validate = newValidator()

// newValidator reports fields by their property names rather than Go names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := strings.Split(field.Tag.Get("mapstructure"), ",")[0]; name != "" {
			return name
		}
		return field.Name
	})
	return v
}

// DecodeProperties copies the custom resource properties into out and validates it.
// CloudFormation passes every scalar as a string, so decoding is weakly typed.
func DecodeProperties(properties map[string]interface{}, out interface{}) error {
	if properties == nil {
		return errors.New("missing ResourceProperties")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "unable to build property decoder")
	}
	if err := decoder.Decode(properties); err != nil {
		return errors.Wrap(err, "malformed ResourceProperties")
	}

	if err := validate.Struct(out); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return errors.Errorf("invalid ResourceProperties: missing or malformed %s", propertyPath(invalid[0]))
		}
		return errors.Wrap(err, "invalid ResourceProperties")
	}
	return nil
}

// ValidateVar checks a single resolved value against a validator tag.
func ValidateVar(name string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return errors.Errorf("invalid %s: must satisfy %q", name, tag)
	}
	return nil
}

// propertyPath drops the Go type name from the namespace: Properties.RDSUri.Port -> RDSUri.Port
func propertyPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
