//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package jsonschema generates tool schemas from Go types by reflection.
package jsonschema

import (
	"reflect"
	"strings"

	"github.com/agentflow-go/agentflow/tool"
)

// Generate builds a JSON schema for the given Go type. Struct fields use
// their json tags for property names; fields without a required marker are
// optional when the json tag carries omitempty.
func Generate(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: Generate(t.Elem())}
	case reflect.Map:
		return &tool.Schema{Type: "object", AdditionalProperties: Generate(t.Elem())}
	case reflect.Struct:
		return generateStruct(t)
	default:
		// Interfaces and anything else degrade to a permissive object.
		return &tool.Schema{Type: "object"}
	}
}

func generateStruct(t reflect.Type) *tool.Schema {
	schema := &tool.Schema{
		Type:       "object",
		Properties: make(map[string]*tool.Schema),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional, skip := parseJSONTag(field)
		if skip {
			continue
		}
		prop := Generate(field.Type)
		if desc := field.Tag.Get("description"); desc != "" {
			prop.Description = desc
		}
		schema.Properties[name] = prop
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

func parseJSONTag(field reflect.StructField) (name string, optional, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			optional = true
		}
	}
	return name, optional, false
}
