package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const iccHeaderSize = 128

var (
	ErrInvalidProfile = errors.New("cmm: invalid ICC profile data")
	ErrTagNotFound    = errors.New("cmm: tag not found")
)

// ICCProfile implements Profile for ICC data. Only the header, the tag
// table and the XYZ and curve tags needed by matrix/TRC transforms are
// read.
type ICCProfile struct {
	data []byte
	tags map[string][]byte
}

// NewICCProfile creates a new ICCProfile from bytes.
func NewICCProfile(data []byte) (*ICCProfile, error) {
	if len(data) < iccHeaderSize {
		return nil, ErrInvalidProfile
	}
	p := &ICCProfile{data: data, tags: make(map[string][]byte)}
	if len(data) < iccHeaderSize+4 {
		return p, nil
	}
	count := int(binary.BigEndian.Uint32(data[128:132]))
	if count > (len(data)-132)/12 {
		return nil, fmt.Errorf("%w: %d tags in %d bytes", ErrInvalidProfile, count, len(data))
	}
	for i := 0; i < count; i++ {
		entry := data[132+12*i:]
		sig := string(entry[0:4])
		off := binary.BigEndian.Uint32(entry[4:8])
		size := binary.BigEndian.Uint32(entry[8:12])
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: tag %q out of bounds", ErrInvalidProfile, sig)
		}
		p.tags[sig] = data[off : off+size]
	}
	return p, nil
}

func (p *ICCProfile) Name() string {
	if d, ok := p.GetTag("desc"); ok {
		if s := readDescription(d); s != "" {
			return s
		}
	}
	return "ICC Profile"
}

func (p *ICCProfile) ColorSpace() string { return string(p.data[16:20]) }
func (p *ICCProfile) Class() string      { return string(p.data[12:16]) }
func (p *ICCProfile) PCS() string        { return string(p.data[20:24]) }
func (p *ICCProfile) Data() []byte       { return p.data }

// GetTag returns the raw bytes of a tag.
func (p *ICCProfile) GetTag(sig string) ([]byte, bool) {
	d, ok := p.tags[sig]
	return d, ok
}

// ReadXYZTag reads the first XYZ number of an 'XYZ ' typed tag.
func (p *ICCProfile) ReadXYZTag(sig string) ([3]float64, error) {
	var xyz [3]float64
	d, ok := p.GetTag(sig)
	if !ok {
		return xyz, fmt.Errorf("%w: %s", ErrTagNotFound, sig)
	}
	if len(d) < 20 || string(d[0:4]) != "XYZ " {
		return xyz, fmt.Errorf("%w: %s is not an XYZ tag", ErrInvalidProfile, sig)
	}
	for i := range xyz {
		xyz[i] = s15Fixed16ToFloat(binary.BigEndian.Uint32(d[8+4*i:]))
	}
	return xyz, nil
}

// ReadCurveTag reads a 'curv' tag holding a single gamma value. An empty
// curve is the identity.
func (p *ICCProfile) ReadCurveTag(sig string) (float64, error) {
	d, ok := p.GetTag(sig)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTagNotFound, sig)
	}
	if len(d) < 12 || string(d[0:4]) != "curv" {
		return 0, fmt.Errorf("%w: %s is not a curve tag", ErrInvalidProfile, sig)
	}
	switch n := binary.BigEndian.Uint32(d[8:12]); n {
	case 0:
		return 1, nil
	case 1:
		if len(d) < 14 {
			return 0, fmt.Errorf("%w: %s truncated", ErrInvalidProfile, sig)
		}
		return float64(binary.BigEndian.Uint16(d[12:14])) / 256.0, nil
	default:
		return 0, fmt.Errorf("cmm: %s: sampled curves with %d entries are not supported", sig, n)
	}
}

func s15Fixed16ToFloat(v uint32) float64 {
	return float64(int32(v)) / 65536.0
}

// readDescription extracts the ASCII text of a 'desc' tag.
func readDescription(d []byte) string {
	if len(d) < 12 || string(d[0:4]) != "desc" {
		return ""
	}
	n := int(binary.BigEndian.Uint32(d[8:12]))
	if n <= 0 || 12+n > len(d) {
		return ""
	}
	s := d[12 : 12+n]
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}
