package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const JSON_CODEC string = "JSON"

var ErrEmptyPayload = errors.New("empty payload")

// EncoderDecoder turns stored values into bytes and back. Decode returns a
// fresh value on every call.
type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

// NewEncoderDecoder picks a codec by its configured name. Empty means JSON.
func NewEncoderDecoder[T any](name string) (EncoderDecoder[T], error) {
	switch name {
	case "", JSON_CODEC:
		return NewJsonEncoderDecoder[T](), nil
	}
	return nil, fmt.Errorf("unsupported encoder decoder %s", name)
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
