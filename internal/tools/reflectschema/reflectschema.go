// Package reflectschema infers a minimal OperationSchema for tools that do
// not implement tools.SchemaProvider, by reflecting over a params struct
// tagged with `schema:"name,required"`. This is the build-time-catalog's
// small reflective fallback named in spec §9 ("Dynamic dispatch").
package reflectschema

import (
	"reflect"
	"strings"

	"goa.design/agentcore/internal/tools"
)

// Infer builds an OperationSchema from the exported fields of sample, a
// zero-value (or populated) instance of the operation's parameter struct.
// Fields are read via a `schema:"field_name,required"` tag; fields without
// a tag use their lowercased Go name and are treated as optional.
func Infer(description string, sample any) *tools.OperationSchema {
	schema := &tools.OperationSchema{
		Description: description,
		Parameters:  map[string]tools.FieldSchema{},
	}
	if sample == nil {
		return schema
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return schema
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, required := fieldName(f)
		schema.Parameters[name] = tools.FieldSchema{
			Type:     goKindToJSONType(f.Type.Kind()),
			Required: required,
		}
	}
	return schema
}

func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("schema")
	if tag == "" {
		return strings.ToLower(f.Name), false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	required := false
	for _, p := range parts[1:] {
		if p == "required" {
			required = true
		}
	}
	return name, required
}

func goKindToJSONType(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
