// Package models defines the log record format and the index entry types
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrCorruptRecord is returned when bytes do not parse as exactly one known record variant
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrTruncatedRecord is returned when bytes end in the middle of a record
	ErrTruncatedRecord = errors.New("truncated record")
)

// RecordOp identifies the mutation a record carries
type RecordOp uint8

const (
	OpSet RecordOp = iota + 1
	OpRemove
)

func (op RecordOp) String() string {
	switch op {
	case OpSet:
		return "Set"
	case OpRemove:
		return "Remove"
	default:
		return fmt.Sprintf("RecordOp(%d)", uint8(op))
	}
}

// Record is one mutation appended to the log
// Value is only meaningful for OpSet
type Record struct {
	Op    RecordOp
	Key   string
	Value string
}

// SetRecord builds a Set record
func SetRecord(key, value string) Record {
	return Record{Op: OpSet, Key: key, Value: value}
}

// RemoveRecord builds a Remove record
func RemoveRecord(key string) Record {
	return Record{Op: OpRemove, Key: key}
}

type setBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type removeBody struct {
	Key string `json:"key"`
}

// wireRecord is the on-disk shape: {"Set":{"key":K,"value":V}} or {"Remove":{"key":K}}
type wireRecord struct {
	Set    *setBody    `json:"Set,omitempty"`
	Remove *removeBody `json:"Remove,omitempty"`
}

func (w *wireRecord) record() (Record, error) {
	switch {
	case w.Set != nil && w.Remove == nil:
		return SetRecord(w.Set.Key, w.Set.Value), nil
	case w.Remove != nil && w.Set == nil:
		return RemoveRecord(w.Remove.Key), nil
	default:
		return Record{}, fmt.Errorf("record must hold exactly one variant: %w", ErrCorruptRecord)
	}
}

// EncodeRecord serializes a record to a single JSON value without a trailing newline
// The length of the returned slice is the exact length stored in the index
func EncodeRecord(r Record) ([]byte, error) {
	var w wireRecord
	switch r.Op {
	case OpSet:
		w.Set = &setBody{Key: r.Key, Value: r.Value}
	case OpRemove:
		w.Remove = &removeBody{Key: r.Key}
	default:
		return nil, fmt.Errorf("EncodeRecord: unknown op %v: %w", r.Op, ErrCorruptRecord)
	}

	data, err := json.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("EncodeRecord: %w", err)
	}
	return data, nil
}

// DecodeRecord parses exactly one record from data
// Trailing whitespace is allowed, any other trailing byte is corruption
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		if err == io.EOF {
			return Record{}, fmt.Errorf("DecodeRecord: empty input: %w", ErrTruncatedRecord)
		}
		return Record{}, fmt.Errorf("DecodeRecord: %w", classify(err))
	}

	if _, err := dec.Token(); err != io.EOF {
		return Record{}, fmt.Errorf("DecodeRecord: trailing data after record: %w", ErrCorruptRecord)
	}

	r, err := w.record()
	if err != nil {
		return Record{}, fmt.Errorf("DecodeRecord: %w", err)
	}
	return r, nil
}

// classify maps a json decoding failure onto the record error taxonomy
func classify(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedRecord
	}
	return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
}
