// Package validation decodes and validates request payloads with
// go-playground/validator, producing the exact user-facing messages the
// API returns.
//
// Struct tags drive the messages:
//
//	Name *string `json:"name" label:"Item name" validate:"required,min=3,max=50"`
//	Qty  *float64 `json:"quantity" label:"Item quantity" validate:"required,gte=0" messages:"gte=Quantity cannot be less than {param}.;type=Quantity must be a number."`
//
// Only the first failure is reported, in struct field order. A value of the
// wrong JSON type counts as a failure of its field.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
	domainerrors "github.com/bac-dam-1991/shopping-list/internal/errors"
)

// MalformedBodyMessage is returned when a body is not valid JSON.
const MalformedBodyMessage = "Request body must be valid JSON."

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the shopping list enum rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		return domain.Unit(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return domain.Status(fl.Field().String()).Valid()
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain validation error for the
// first failing field.
func (v *Validator) Validate(s any) error {
	return v.firstError(s, nil)
}

// DecodeAndValidate unmarshals a JSON body into dst and validates it.
// An empty body decodes as an empty object so that required-field messages
// are reported instead of a parse failure. A value of the wrong JSON type is
// reported in struct field order alongside the rule failures.
func (v *Validator) DecodeAndValidate(raw []byte, dst any) error {
	mismatches, err := decode(raw, dst)
	if err != nil {
		return err
	}
	return v.firstError(dst, mismatches)
}

// firstError reports the failure of the earliest declared field, taking
// both rule failures and type mismatches (keyed by field index) into account.
func (v *Validator) firstError(s any, mismatches map[int]*domainerrors.Error) error {
	t := structType(s)
	var first *domainerrors.Error
	firstIndex := -1
	for i, mismatch := range mismatches {
		if firstIndex < 0 || i < firstIndex {
			first, firstIndex = mismatch, i
		}
	}

	err := v.v.Struct(s)
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		return err
	}

	for _, fe := range fieldErrs {
		i := fieldIndex(t, fe.StructField())
		if _, mismatched := mismatches[i]; mismatched {
			continue
		}
		if firstIndex < 0 || i < firstIndex {
			msg := message(t, fe)
			first = domainerrors.ValidationWithDetails(msg, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
			firstIndex = i
		}
		// Errors arrive in field order, so the first unskipped one decides.
		break
	}

	if first == nil {
		return nil
	}
	return first
}

// decode unmarshals a JSON object into the struct dst one field at a time so
// that every type mismatch is found. Mismatches are keyed by field index.
func decode(raw []byte, dst any) (map[int]*domainerrors.Error, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, domainerrors.Validation(MalformedBodyMessage).WithCause(err)
		}
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, domainerrors.Validation(MalformedBodyMessage).WithCause(err)
	}

	var mismatches map[int]*domainerrors.Error
	st := rv.Elem().Type()
	for i := range st.NumField() {
		fld := st.Field(i)
		name, ok := jsonName(fld)
		if !ok {
			continue
		}
		value, found := lookup(fields, name)
		if !found {
			continue
		}

		err := json.Unmarshal(value, rv.Elem().Field(i).Addr().Interface())
		if err == nil {
			continue
		}
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, domainerrors.Validation(MalformedBodyMessage).WithCause(err)
		}
		if mismatches == nil {
			mismatches = make(map[int]*domainerrors.Error)
		}
		mismatches[i] = domainerrors.ValidationWithDetails(typeMessage(fld, typeErr.Type), map[string]string{"field": name, "rule": "type"})
	}
	return mismatches, nil
}

// lookup finds a key the way encoding/json matches object keys to fields:
// exactly first, then case-insensitively.
func lookup(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if value, ok := fields[name]; ok {
		return value, true
	}
	for key, value := range fields {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

func message(t reflect.Type, e validator.FieldError) string {
	fld, ok := fieldByName(t, e.StructField())
	label := e.Field()
	if ok {
		label = labelOf(fld)
		if custom, found := customMessage(fld, e.Tag()); found {
			return strings.ReplaceAll(custom, "{param}", e.Param())
		}
	}

	switch e.Tag() {
	case "required":
		return label + " is required."
	case "min":
		if isEmptyString(e) {
			return label + " is required."
		}
		return fmt.Sprintf("%s needs to be at least %s characters long.", label, e.Param())
	case "max":
		return fmt.Sprintf("%s cannot be more than %s characters long.", label, e.Param())
	case "len":
		if isEmptyString(e) {
			return label + " is required."
		}
		return fmt.Sprintf("%s needs to be %s characters long.", label, e.Param())
	case "gte":
		return fmt.Sprintf("%s cannot be less than %s.", label, e.Param())
	case "unit":
		return "Invalid unit. Valid units are " + domain.ValidUnits() + "."
	case "status":
		return "Invalid status. Valid statuses are " + domain.ValidStatuses() + "."
	default:
		return label + " is invalid."
	}
}

func typeMessage(fld reflect.StructField, want reflect.Type) string {
	if custom, ok := customMessage(fld, "type"); ok {
		return custom
	}
	kind := "string"
	for want.Kind() == reflect.Pointer {
		want = want.Elem()
	}
	switch want.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64:
		kind = "number"
	case reflect.Bool:
		kind = "boolean"
	}
	return fmt.Sprintf("%s must be a %s.", labelOf(fld), kind)
}

func isEmptyString(e validator.FieldError) bool {
	s, ok := e.Value().(string)
	if !ok {
		if p, isPtr := e.Value().(*string); isPtr && p != nil {
			s, ok = *p, true
		}
	}
	return ok && s == ""
}

func labelOf(fld reflect.StructField) string {
	if label := fld.Tag.Get("label"); label != "" {
		return label
	}
	return fld.Name
}

// customMessage reads a per-rule override from the "messages" tag, formatted
// as "rule=text;rule=text".
func customMessage(fld reflect.StructField, rule string) (string, bool) {
	for entry := range strings.SplitSeq(fld.Tag.Get("messages"), ";") {
		key, text, ok := strings.Cut(entry, "=")
		if ok && strings.TrimSpace(key) == rule {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

func structType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func fieldByName(t reflect.Type, name string) (reflect.StructField, bool) {
	if t == nil || t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	return t.FieldByName(name)
}

func fieldIndex(t reflect.Type, name string) int {
	fld, ok := fieldByName(t, name)
	if !ok || len(fld.Index) == 0 {
		return -1
	}
	return fld.Index[0]
}

// jsonName returns the object key of an exported field.
func jsonName(fld reflect.StructField) (string, bool) {
	if !fld.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return fld.Name, true
	}
	return name, true
}
