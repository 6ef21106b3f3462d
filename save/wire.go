package save

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode is canonical so identical state always encodes to identical
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("save: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Snapshot to CBOR bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a Snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("save: unmarshal snapshot: %w", err)
	}
	if s.Version > Version {
		return nil, fmt.Errorf("save: snapshot version %d is newer than %d", s.Version, Version)
	}
	return &s, nil
}
