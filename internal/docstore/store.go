// Package docstore defines the key-value document repository the rest of
// DuoMatch talks to. Documents are addressed by collection and id and are
// plain JSON-shaped maps; how they are persisted is up to the backend.
//
// Backends live in subpackages (memory, sqlite, postgres, s3); the client
// reaches the server's store through the gRPC API client.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/duomatch/internal/common"
)

// Document is a JSON-shaped record. Values are nil, bool, float64/int64,
// string, []any or map[string]any.
type Document map[string]any

// Store reads and writes documents.
//
// Get returns common.ErrorNotFound (possibly wrapped) when the document is
// absent. Set replaces the whole document.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey rejects empty or path-like collection names and ids.
func ValidateKey(collection, id string) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: collection and id are required", common.ErrorValidation)
	}
	if strings.ContainsAny(collection, "/\\") || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: collection and id must not contain path separators", common.ErrorValidation)
	}
	return nil
}

// Clone returns a deep copy of d so callers cannot alias stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return map[string]any(Document(value).Clone())
	case Document:
		return value.Clone()
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	default:
		return value
	}
}

// Marshal encodes d for storage in text or blob columns.
func Marshal(d Document) ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a stored document. Numbers come back as float64.
func Unmarshal(b []byte) (Document, error) {
	d := Document{}
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}
