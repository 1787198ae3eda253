package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/scanctl/internal/registry"
)

// FormatVersion is the current version of the persisted document.
const FormatVersion = 1

// document wraps a snapshot with format metadata.
type document struct {
	Version  int               `json:"version"`
	SavedAt  time.Time         `json:"saved_at"`
	Registry *registry.Snapshot `json:"registry"`
}

func encode(snap *registry.Snapshot, now time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(document{
		Version:  FormatVersion,
		SavedAt:  now,
		Registry: snap,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*registry.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("snapshot format version %d is newer than supported %d", doc.Version, FormatVersion)
	}
	if doc.Registry == nil {
		return registry.NewSnapshot(), nil
	}
	return doc.Registry, nil
}
