package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator is the schema-validation gate the gossip engine calls before
// every outbound message is finalized and before every inbound message is
// accepted. It is an explicitly constructed, injected dependency; there is
// no package-level singleton.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the boundary schemas. Compilation failure means a
// broken build, so the error is worth failing startup on.
func NewValidator() (*Validator, error) {
	sources := map[string]string{
		NodeOutput:   nodeOutputSchema,
		HeartbeatMsg: heartbeatSchema,
		MemoryEntry:  memoryEntrySchema,
		GossipDigest: gossipDigestSchema,
	}

	compiled := make(map[string]*jsonschema.Schema, len(sources))
	for name, source := range sources {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		compiler.AssertFormat = true

		url := name + ".json"
		if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		compiled[name] = sch
	}

	return &Validator{schemas: compiled}, nil
}

// Validate checks data against the named schema. Structs are round-tripped
// through JSON so validation sees exactly the wire representation. Returns
// ok plus a human-readable detail on failure.
func (v *Validator) Validate(data any, schemaName string) (bool, string) {
	sch, ok := v.schemas[schemaName]
	if !ok {
		return false, fmt.Sprintf("unknown schema: %s", schemaName)
	}

	instance, err := toInstance(data)
	if err != nil {
		return false, fmt.Sprintf("not serializable: %v", err)
	}

	if err := sch.Validate(instance); err != nil {
		return false, validationDetail(err)
	}
	return true, ""
}

// ValidateNodeOutput checks data against the node-output schema.
func (v *Validator) ValidateNodeOutput(data any) (bool, string) {
	return v.Validate(data, NodeOutput)
}

// ValidateHeartbeat checks data against the heartbeat schema.
func (v *Validator) ValidateHeartbeat(data any) (bool, string) {
	return v.Validate(data, HeartbeatMsg)
}

// toInstance converts data into the decoded-JSON form the validator
// expects. Raw bytes are decoded directly; anything else is marshaled
// first.
func toInstance(data any) (any, error) {
	var raw []byte
	switch d := data.(type) {
	case []byte:
		raw = d
	case json.RawMessage:
		raw = d
	case map[string]any:
		return d, nil
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func validationDetail(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("validation error: %s at %s", leaf.Message, loc)
	}
	return err.Error()
}
