package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document names shared by every backend.
const (
	PostsDocument = "posts"
	UsersDocument = "users"
	MetaDocument  = "meta"
)

// Encode renders a collection the way it is kept on disk: a top-level JSON
// array, four-space indented. A nil slice encodes as [] rather than null.
func Encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding collection: %w", err)
	}
	return data, nil
}

// Decode parses a stored collection. Blank input decodes to an empty slice.
func Decode[T any](data []byte) ([]T, error) {
	items := []T{}
	if len(bytes.TrimSpace(data)) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	if items == nil {
		// the document was a literal null
		items = []T{}
	}
	return items, nil
}

// EncodeMeta renders the meta document with the same indent as collections.
func EncodeMeta(meta PostMeta) ([]byte, error) {
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}
	return data, nil
}

// DecodeMeta parses a stored meta document. Blank input is the zero value.
func DecodeMeta(data []byte) (PostMeta, error) {
	var meta PostMeta
	if len(bytes.TrimSpace(data)) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return PostMeta{}, fmt.Errorf("decoding meta: %w", err)
	}
	return meta, nil
}
