// Package auth performs the form-encoded login call and extracts the bearer
// token from its JSON response.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// TokenField is the JSON field holding the bearer token.
const TokenField = "access_token"

const tokenResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["access_token"],
  "properties": {
    "access_token": {"type": "string", "minLength": 1},
    "token_type": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// FormatError is returned when the login response is not JSON or carries no
// usable access_token.
type FormatError struct {
	Reason string
	Body   string
}

func (e *FormatError) Error() string {
	if e.Body == "" {
		return "malformed auth response: " + e.Reason
	}
	return fmt.Sprintf("malformed auth response: %s (body: %s)", e.Reason, e.Body)
}

func tokenSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("token.json", strings.NewReader(tokenResponseSchema)); err != nil {
			schemaErr = fmt.Errorf("invalid token schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("token.json")
	})
	return compiledSchema, schemaErr
}

// ParseToken validates a login response body and returns its access_token.
func ParseToken(body []byte) (string, error) {
	schema, err := tokenSchema()
	if err != nil {
		return "", err
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", &FormatError{Reason: "response is not valid JSON: " + err.Error(), Body: truncate(body)}
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return "", &FormatError{Reason: verr.Error(), Body: truncate(body)}
		}
		return "", &FormatError{Reason: err.Error(), Body: truncate(body)}
	}

	return gjson.GetBytes(body, TokenField).String(), nil
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
