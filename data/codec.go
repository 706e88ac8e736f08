package data

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so the same snapshot always produces the same bytes,
// and therefore the same digest.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("data: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("data: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalSnapshot encodes a snapshot deterministically.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// UnmarshalSnapshot decodes a snapshot.
func UnmarshalSnapshot(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := decMode.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
