package anttop

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// ErrMalformed is returned when a response does not have the expected shape
var ErrMalformed = errors.New("malformed response")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the wrapper the backend puts around most responses
type envelope struct {
	Code           int                 `json:"code"`
	SuccessMessage string              `json:"successMessage,omitempty"`
	ErrorMessage   string              `json:"errorMessage,omitempty"`
	Result         jsoniter.RawMessage `json:"result,omitempty"`
}

// unwrap returns the result payload of an enveloped response, or body
// unchanged when it is bare JSON
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var keys map[string]jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return trimmed
	}
	_, hasCode := keys["code"]
	result, hasResult := keys["result"]
	if !hasCode || !hasResult {
		return trimmed
	}
	return result
}

// DecodeCollection parses a JSON object of label -> array of records,
// keeping the labels in document order
func DecodeCollection[T any](data []byte) (*Collection[T], error) {
	coll := NewCollection[T]()
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	iter := jsoniter.ParseBytes(json, data)
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		return coll, nil
	case jsoniter.ObjectValue:
	default:
		return nil, fmt.Errorf("%w: expected an object of streams", ErrMalformed)
	}

	iter.ReadMapCB(func(it *jsoniter.Iterator, label string) bool {
		var stream []T
		it.ReadVal(&stream)
		if it.Error != nil {
			return false
		}
		coll.Add(label, stream)
		return true
	})
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, iter.Error)
	}
	return coll, nil
}

func decodeAggregate(data []byte) ([]AggregateStat, error) {
	var stats []AggregateStat
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("%w: aggregate: %v", ErrMalformed, err)
	}
	return stats, nil
}
