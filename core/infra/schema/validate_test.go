package schema

import (
	"encoding/json"
	"testing"
)

const buildSchema = `{
	"type": "object",
	"required": ["github_url"],
	"properties": {
		"github_url": {"type": "string", "minLength": 1},
		"generate_unit": {"type": "boolean"},
		"generate_bdd": {"type": "boolean"}
	}
}`

func TestValidateAccepts(t *testing.T) {
	payload := json.RawMessage(`{"github_url": "https://github.com/acme/demo", "generate_unit": true}`)
	if err := Validate("build", []byte(buildSchema), payload); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	payload := json.RawMessage(`{"generate_unit": true}`)
	if err := Validate("build", []byte(buildSchema), payload); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	payload := json.RawMessage(`{"github_url": "x", "generate_bdd": "yes"}`)
	if err := Validate("build", []byte(buildSchema), payload); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestValidateEmptySchema(t *testing.T) {
	if err := Validate("build", nil, map[string]any{}); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}
