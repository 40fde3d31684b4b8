package rpc

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
)

// StringField returns a required non-empty string field of s.
func StringField(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", common.ErrorValidation, key)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || str.StringValue == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", common.ErrorValidation, key)
	}
	return str.StringValue, nil
}

// BytesField decodes a required standard base64 field of s.
func BytesField(s *structpb.Struct, key string) ([]byte, error) {
	str, err := StringField(s, key)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64", common.ErrorValidation, key)
	}
	return b, nil
}

// EncodeBytes is the wire form BytesField reads.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DocumentToStruct converts a document for the wire.
func DocumentToStruct(d docstore.Document) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(plain(d))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return s, nil
}

// StructToDocument converts a wire struct back. Numbers become float64.
func StructToDocument(s *structpb.Struct) docstore.Document {
	if s == nil {
		return docstore.Document{}
	}
	return docstore.Document(s.AsMap())
}

// plain strips the named Document type from nested values, which
// structpb.NewValue does not recognise.
func plain(d docstore.Document) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch value := v.(type) {
	case docstore.Document:
		return plain(value)
	case map[string]any:
		return plain(docstore.Document(value))
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = plainValue(value[i])
		}
		return out
	default:
		return value
	}
}
