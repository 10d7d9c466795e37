package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/domain"
)

const recordVersion = 1

type recordField struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Value string
}

// record is the opaque ephemeral-tier encoding of a bundle.
type record struct {
	_       struct{} `cbor:",toarray"`
	Version uint8
	Fields  []recordField
}

var recordDecMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		MaxArrayElements: domain.MaxFields,
		// Field values are raw form bytes and need not be valid UTF-8.
		UTF8: cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func encodeRecord(bundle domain.Bundle) ([]byte, error) {
	if bundle.Len() > domain.MaxFields {
		return nil, fmt.Errorf("encode record: %d fields exceed limit of %d", bundle.Len(), domain.MaxFields)
	}
	fields := bundle.Fields()
	rec := record{Version: recordVersion, Fields: make([]recordField, len(fields))}
	for i, f := range fields {
		rec.Fields[i] = recordField{Name: f.Name, Value: f.Value}
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// decodeRecord fails for anything this package did not write.
func decodeRecord(data []byte) (domain.Bundle, error) {
	var rec record
	if err := recordDecMode.Unmarshal(data, &rec); err != nil {
		return domain.Bundle{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.Version != recordVersion {
		return domain.Bundle{}, fmt.Errorf("decode record: unsupported version %d", rec.Version)
	}
	fields := make([]domain.Field, len(rec.Fields))
	for i, f := range rec.Fields {
		fields[i] = domain.Field{Name: f.Name, Value: f.Value}
	}
	return domain.BundleFromFields(fields), nil
}
