package types

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed candidate_record.schema.json
var candidateRecordSchema []byte

// ErrMalformedRecord is wrapped by every Decode failure.
var ErrMalformedRecord = errors.New("malformed candidate record")

// Codec 负责记录的序列化与校验
// Encode writes the persisted interchange format; Decode validates against
// the embedded JSON Schema before unmarshalling.
type Codec struct {
	schema *jsonschema.Schema
}

// NewCodec compiles the embedded schema.
func NewCodec() (*Codec, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("candidate_record.schema.json", bytes.NewReader(candidateRecordSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("candidate_record.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Codec{schema: schema}, nil
}

// MustNewCodec is NewCodec for package initialisation and tests.
func MustNewCodec() *Codec {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	return c
}

// Encode serializes rec with four-space indentation. Absent fields are omitted.
func (c *Codec) Encode(rec CandidateRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec.Normalize(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode candidate record: %w", err)
	}
	return data, nil
}

// Decode parses and validates a persisted record.
func (c *Codec) Decode(data []byte) (CandidateRecord, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return CandidateRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return CandidateRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	var rec CandidateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return CandidateRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec.Normalize(), nil
}
