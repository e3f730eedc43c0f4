package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// Validator validates event payloads against registered JSON schemas
// (draft 2020-12). Compiled schemas are cached by content hash so repeated
// publishes to the same topic skip recompilation.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Check compiles the schema without validating anything, rejecting malformed
// schema documents at registration time.
func Check(def types.SchemaDef) error {
	if _, err := compile(def.Schema); err != nil {
		return errdefs.Wrap(err, errdefs.KindInvalid, errdefs.CodeInvalidInput,
			"invalid schema for event type %q", def.EventType)
	}
	return nil
}

// Validate checks the payload against the schema registered for its event
// type, returning a SCHEMA_VALIDATION error on mismatch.
func (v *Validator) Validate(def *types.SchemaDef, payload json.RawMessage) error {
	sch, err := v.compiledFor(def)
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return errdefs.Wrap(err, errdefs.KindInvalid, errdefs.CodeInvalidEvent,
			"payload is not valid JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return errdefs.Wrap(err, errdefs.KindInvalid, errdefs.CodeSchemaValidation,
			"payload does not satisfy schema for %q", def.EventType)
	}
	return nil
}

func (v *Validator) compiledFor(def *types.SchemaDef) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(def.Schema)
	key := hex.EncodeToString(sum[:])

	v.mu.RLock()
	sch, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return sch, nil
	}

	sch, err := compile(def.Schema)
	if err != nil {
		return nil, errdefs.Wrap(err, errdefs.KindInternal, errdefs.CodeInternal,
			"compile schema for %q", def.EventType)
	}

	v.mu.Lock()
	v.compiled[key] = sch
	v.mu.Unlock()
	return sch, nil
}

func compile(raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
