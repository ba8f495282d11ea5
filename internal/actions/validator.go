package actions

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrValidation matches envelopes rejected by their action schema.
var ErrValidation = errors.New("validation failed")

// Validator checks WebApp envelopes against the embedded schema of their
// action.
type Validator struct {
	schemas map[Action]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schemas := make(map[Action]*jsonschema.Schema, len(Actions))
	for _, a := range Actions {
		name := "schemas/" + string(a) + ".json"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		id := "https://reviewcash.app/schemas/" + string(a) + ".json"
		schemas[a], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", a, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Parse validates body and returns its envelope. Malformed JSON, an unknown
// action and schema violations all wrap ErrValidation.
func (v *Validator) Parse(body []byte) (*Envelope, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: envelope must be an object", ErrValidation)
	}
	name, _ := obj["action"].(string)
	action, err := ParseAction(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := v.schemas[action].Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	env := &Envelope{Action: action, Body: json.RawMessage(body)}
	var head struct {
		User UserRef `json:"user"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrValidation, err)
	}
	env.User = head.User
	return env, nil
}

// describe flattens a schema error to its innermost causes.
func describe(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(msgs, "; ")
}
