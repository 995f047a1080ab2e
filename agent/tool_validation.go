package agent

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// ErrToolArgumentsInvalid is returned when call arguments violate the tool input schema.
var ErrToolArgumentsInvalid = errors.New("tool arguments are invalid")

// IndexToolDefinitions maps definitions by tool name.
func IndexToolDefinitions(definitions []ToolDefinition) map[string]ToolDefinition {
	out := make(map[string]ToolDefinition, len(definitions))
	for i := range definitions {
		out[definitions[i].Name] = definitions[i]
	}
	return out
}

// ValidateToolArguments checks the required fields and declared property types of
// a JSON-schema-like input schema. Unknown keywords are ignored.
func ValidateToolArguments(call ToolCall, definition ToolDefinition) error {
	schema := definition.InputSchema
	if len(schema) == 0 {
		return nil
	}

	for _, field := range requiredFields(schema["required"]) {
		if _, ok := call.Arguments[field]; !ok {
			return fmt.Errorf("%w: field=%s reason=missing tool=%s", ErrToolArgumentsInvalid, field, call.Name)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	closed := schema["additionalProperties"] == false

	keys := make([]string, 0, len(call.Arguments))
	for key := range call.Arguments {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		property, declared := properties[key].(map[string]any)
		if !declared {
			if closed && properties != nil {
				return fmt.Errorf("%w: field=%s reason=unknown tool=%s", ErrToolArgumentsInvalid, key, call.Name)
			}
			continue
		}
		want, _ := property["type"].(string)
		if want == "" {
			continue
		}
		if !matchesSchemaType(want, call.Arguments[key]) {
			return fmt.Errorf(
				"%w: field=%s reason=type want=%s tool=%s",
				ErrToolArgumentsInvalid,
				key,
				want,
				call.Name,
			)
		}
	}
	return nil
}

func requiredFields(raw any) []string {
	switch value := raw.(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if field, ok := item.(string); ok {
				out = append(out, field)
			}
		}
		return out
	default:
		return nil
	}
}

func matchesSchemaType(want string, value any) bool {
	if value == nil {
		return want == "null"
	}
	kind := reflect.TypeOf(value).Kind()
	switch want {
	case "string":
		return kind == reflect.String
	case "boolean":
		return kind == reflect.Bool
	case "integer":
		switch kind {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(value).Float()
			return f == float64(int64(f))
		}
		return false
	case "number":
		switch kind {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	case "object":
		return kind == reflect.Map
	case "array":
		return kind == reflect.Slice || kind == reflect.Array
	default:
		return true
	}
}
