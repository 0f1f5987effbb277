// Package codec is the CBOR configuration shared by the option store and
// the graph context digests. Encoding is Core Deterministic, so the same
// logical data always produces the same bytes and can be hashed.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Unknown fields are ignored.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder and Decoder are aliases so callers need not import cbor.
type Encoder = cbor.Encoder
type Decoder = cbor.Decoder

// RawMessage is an encoded CBOR value whose decoding is delayed.
type RawMessage = cbor.RawMessage

func NewEncoder(w io.Writer) *Encoder { return encMode.NewEncoder(w) }
func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }

// Diagnose returns the diagnostic notation of data, for debugging output.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
