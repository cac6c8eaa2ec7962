package tools

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs maps raw tool call arguments onto a typed args struct.
// Numbers arrive as float64 from JSON, so weak typing handles int fields.
func DecodeArgs(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build args decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

// requireString pulls a mandatory string argument.
func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// optionalString pulls an optional string argument, empty when absent.
func optionalString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
