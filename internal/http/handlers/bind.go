package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// itemValidator re-checks individual bulk items, which bypass gin's binding
// so one invalid entry cannot fail the whole payload.
var itemValidator = newItemValidator()

func newItemValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

func ValidateStruct(out interface{}) []FieldError {
	err := itemValidator.Struct(out)

	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fieldErrorsFrom(verrs, out)
	}

	return []FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}
}

// BindJSON binds and validates a request body, writing the 400 response
// itself on failure.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out))

		return false
	}

	return true
}

func parseBindError(err error, out interface{}) []FieldError {
	var verrs validator.ValidationErrors

	if errors.As(err, &verrs) {
		return fieldErrorsFrom(verrs, out)
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return []FieldError{{Rule: "json", Message: "request body is not valid JSON"}}
	}

	var typeError *json.UnmarshalTypeError

	if errors.As(err, &typeError) {
		return []FieldError{{
			Field:   typeError.Field,
			Rule:    "type",
			Message: fmt.Sprintf("must be of type %s", typeError.Type.String()),
		}}
	}

	return []FieldError{{Rule: "invalid", Message: err.Error()}}
}

func fieldErrorsFrom(verrs validator.ValidationErrors, out interface{}) []FieldError {
	rootType := baseStructType(out)
	fields := make([]FieldError, 0, len(verrs))

	for _, fe := range verrs {
		rule := fe.Tag()
		param := fe.Param()

		fields = append(fields, FieldError{
			Field:   jsonFieldName(rootType, fe.StructField(), fe.Field()),
			Rule:    rule,
			Param:   param,
			Message: validationMessage(rule, param),
		})
	}

	return fields
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "this field is required"
	case "required_if":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "cannot exceed " + param + " characters"
	case "gte":
		return "must be greater than or equal to " + param
	case "oneof":
		return "must be one of: " + param
	default:
		return "failed the '" + rule + "' rule"
	}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonFieldName maps a struct field to its json tag so errors are keyed the
// way the client sent them. Falls back to the validator's own name.
func jsonFieldName(rootType reflect.Type, structField, fallback string) string {
	if rootType == nil {
		return fallback
	}

	sf, ok := rootType.FieldByName(structField)
	if !ok {
		return fallback
	}

	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return fallback
	}

	if idx := strings.Index(tag, ","); idx != -1 {
		tag = tag[:idx]
	}

	if tag == "" {
		return fallback
	}

	return tag
}
