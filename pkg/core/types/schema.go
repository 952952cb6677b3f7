package types

import (
	"reflect"
	"strings"
)

// GenerateJSONSchema generates a JSON Schema from a Go type.
// It supports struct tags:
//   - json:"name"        - field name in JSON
//   - desc:"description" - field description
//   - enum:"a,b,c"       - enum values
func GenerateJSONSchema(t reflect.Type) *JSONSchema {
	if t == nil {
		return &JSONSchema{}
	}
	return generateSchemaFromType(t)
}

// SchemaFor generates a JSON schema from a struct type parameter.
func SchemaFor[T any]() *JSONSchema {
	var zero T
	return GenerateJSONSchema(reflect.TypeOf(zero))
}

func generateSchemaFromType(t reflect.Type) *JSONSchema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return generateObjectSchema(t)
	case reflect.Slice, reflect.Array:
		return &JSONSchema{
			Type:  "array",
			Items: generateSchemaFromType(t.Elem()),
		}
	case reflect.String:
		return &JSONSchema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &JSONSchema{Type: "number"}
	case reflect.Bool:
		return &JSONSchema{Type: "boolean"}
	case reflect.Map:
		return &JSONSchema{Type: "object"}
	case reflect.Interface:
		return &JSONSchema{}
	default:
		return &JSONSchema{Type: "string"}
	}
}

func generateObjectSchema(t reflect.Type) *JSONSchema {
	schema := &JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
		Required:   []string{},
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		jsonName := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				jsonName = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" {
					omitempty = true
					break
				}
			}
		}

		fieldSchema := generateSchemaFromType(field.Type)
		if desc := field.Tag.Get("desc"); desc != "" {
			fieldSchema.Description = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			fieldSchema.Enum = parseEnumTag(enum)
		}

		schema.Properties[jsonName] = *fieldSchema

		if field.Type.Kind() != reflect.Ptr && !omitempty {
			schema.Required = append(schema.Required, jsonName)
		}
	}

	return schema
}

func parseEnumTag(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
