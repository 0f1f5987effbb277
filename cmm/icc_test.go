package cmm

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestICCProfileParse(t *testing.T) {
	data := make([]byte, 132)
	binary.BigEndian.PutUint32(data[0:4], 132)
	binary.BigEndian.PutUint32(data[12:16], 0x6D6E7472) // mntr
	binary.BigEndian.PutUint32(data[16:20], 0x52474220) // RGB
	binary.BigEndian.PutUint32(data[20:24], 0x58595A20) // XYZ
	binary.BigEndian.PutUint32(data[36:40], 0x61637370) // acsp
	binary.BigEndian.PutUint32(data[128:132], 0)

	p, err := NewICCProfile(data)
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}

	if p.Class() != "mntr" {
		t.Errorf("expected class 'mntr', got '%s'", p.Class())
	}
	if p.ColorSpace() != SpaceRGB {
		t.Errorf("expected color space 'RGB ', got '%s'", p.ColorSpace())
	}
	if p.PCS() != SpaceXYZ {
		t.Errorf("expected PCS 'XYZ ', got '%s'", p.PCS())
	}
	if p.Name() != "ICC Profile" {
		t.Errorf("unexpected name %q", p.Name())
	}
	if _, err := p.ReadXYZTag("rXYZ"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("expected ErrTagNotFound, got %v", err)
	}
}

func TestICCProfileRejectsBadTagTable(t *testing.T) {
	if _, err := NewICCProfile(make([]byte, 64)); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("short header: got %v", err)
	}

	data := make([]byte, 144)
	binary.BigEndian.PutUint32(data[128:132], 1)
	copy(data[132:136], "desc")
	binary.BigEndian.PutUint32(data[136:140], 100)
	binary.BigEndian.PutUint32(data[140:144], 100)
	if _, err := NewICCProfile(data); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("out of bounds tag: got %v", err)
	}

	binary.BigEndian.PutUint32(data[128:132], 50)
	if _, err := NewICCProfile(data); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("tag count too large: got %v", err)
	}
}

func TestICCDescription(t *testing.T) {
	desc := make([]byte, 12+8)
	copy(desc[0:4], "desc")
	binary.BigEndian.PutUint32(desc[8:12], 8)
	copy(desc[12:], "Studio\x00\x00")

	data := make([]byte, 132+12+len(desc))
	binary.BigEndian.PutUint32(data[128:132], 1)
	copy(data[132:136], "desc")
	binary.BigEndian.PutUint32(data[136:140], 144)
	binary.BigEndian.PutUint32(data[140:144], uint32(len(desc)))
	copy(data[144:], desc)

	p, err := NewICCProfile(data)
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	if p.Name() != "Studio" {
		t.Errorf("expected 'Studio', got %q", p.Name())
	}
}
