package config

import (
	"testing"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEAMH_TEST_VAR", "value123")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no dollar", "plain", "plain"},
		{"braced", "${TEAMH_TEST_VAR}", "value123"},
		{"simple", "$TEAMH_TEST_VAR", "value123"},
		{"with default, set", "${TEAMH_TEST_VAR:-fallback}", "value123"},
		{"with default, unset", "${TEAMH_TEST_UNSET:-fallback}", "fallback"},
		{"unset braced", "${TEAMH_TEST_UNSET}", ""},
		{"embedded", "prefix-${TEAMH_TEST_VAR}-suffix", "prefix-value123-suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"true", true},
		{"False", false},
		{"42", 42},
		{"3.14", 3.14},
		{"hello", "hello"},
	}

	for _, tt := range tests {
		if got := parseValue(tt.input); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
		}
	}
}

func TestExpandEnvVarsInData(t *testing.T) {
	t.Setenv("TEAMH_TEST_PORT", "8080")

	data := map[string]interface{}{
		"port":   "${TEAMH_TEST_PORT}",
		"nested": map[string]interface{}{"flag": "${TEAMH_TEST_FLAG:-true}"},
		"list":   []interface{}{"${TEAMH_TEST_PORT}", "static"},
		"number": 7,
	}

	result := ExpandEnvVarsInData(data).(map[string]interface{})

	if result["port"] != 8080 {
		t.Errorf("port = %v, want int 8080", result["port"])
	}
	nested := result["nested"].(map[string]interface{})
	if nested["flag"] != true {
		t.Errorf("flag = %v, want true", nested["flag"])
	}
	list := result["list"].([]interface{})
	if list[0] != 8080 || list[1] != "static" {
		t.Errorf("list = %v", list)
	}
	if result["number"] != 7 {
		t.Errorf("number = %v, want 7", result["number"])
	}
}
