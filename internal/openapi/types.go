package openapi

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// readOnlyFields are assigned by the store and ignored on input.
var readOnlyFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// customizeField applies the validate struct tag of a document field to its
// generated schema. It is passed to openapi3gen as a SchemaCustomizer.
func customizeField(name string, t reflect.Type, tag reflect.StructTag, schema *openapi3.Schema) error {
	if readOnlyFields[name] {
		schema.ReadOnly = true
	}

	for _, rule := range fieldRules(t, tag) {
		key, arg, _ := strings.Cut(rule, "=")
		switch key {
		case "email":
			schema.Format = "email"
		case "url":
			schema.Format = "uri"
		case "iso4217":
			schema.Pattern = "^[A-Z]{3}$"
		case "oneof":
			for _, v := range strings.Fields(arg) {
				schema.Enum = append(schema.Enum, v)
			}
		case "max":
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				continue
			}
			switch t.Kind() {
			case reflect.String:
				schema.MaxLength = &n
			case reflect.Slice:
				schema.MaxItems = &n
			}
		case "gt", "gte":
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				continue
			}
			schema.Min = &f
			if key == "gt" {
				schema.Description = "Must be greater than " + arg
			}
		}
	}
	return nil
}

// fieldRules returns the validate rules that apply to t. Rules after "dive"
// apply to slice elements, which openapi3gen visits with the parent's tag.
func fieldRules(t reflect.Type, tag reflect.StructTag) []string {
	rules := strings.Split(tag.Get("validate"), ",")
	for i, r := range rules {
		if r != "dive" {
			continue
		}
		if t.Kind() == reflect.Slice {
			return rules[:i]
		}
		return rules[i+1:]
	}
	return rules
}

// requiredFields returns the JSON names of the fields of struct type t whose
// validate tag starts with "required". Embedded structs are flattened.
func requiredFields(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, requiredFields(f.Type)...)
			continue
		}
		rules := strings.Split(f.Tag.Get("validate"), ",")
		if rules[0] != "required" {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" {
			name = f.Name
		}
		out = append(out, name)
	}
	return out
}
