package knx

import (
	"errors"
	"testing"
)

// ─── Group addresses ────────────────────────────────────────────────

func TestParseGroupAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    GroupAddress
		wantErr bool
	}{
		{"three level", "1/2/3", 0x0A03, false},
		{"three level max", "31/7/255", 0xFFFF, false},
		{"three level zero", "0/0/0", 0x0000, false},
		{"two level", "1/515", 0x0A03, false},
		{"free", "2563", 0x0A03, false},
		{"whitespace", " 1/2/3 ", 0x0A03, false},
		{"main too large", "32/0/0", 0, true},
		{"middle too large", "1/8/0", 0, true},
		{"sub too large", "1/2/256", 0, true},
		{"two level sub too large", "1/2048", 0, true},
		{"free too large", "65536", 0, true},
		{"four parts", "1/2/3/4", 0, true},
		{"not a number", "a/b/c", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGroupAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGroupAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidGroupAddress) {
				t.Errorf("ParseGroupAddress(%q) error = %v, want ErrInvalidGroupAddress", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseGroupAddress(%q) = 0x%04X, want 0x%04X", tt.in, uint16(got), uint16(tt.want))
			}
		})
	}
}

func TestGroupAddressFormat(t *testing.T) {
	ga := NewGroupAddress(1, 2, 3)

	tests := []struct {
		style AddressStyle
		want  string
	}{
		{StyleThreeLevel, "1/2/3"},
		{StyleTwoLevel, "1/515"},
		{StyleFree, "2563"},
		{"", "1/2/3"},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			got := ga.Format(tt.style)
			if got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.style, got, tt.want)
			}
			back, err := ParseGroupAddress(got)
			if err != nil {
				t.Fatalf("ParseGroupAddress(%q) error = %v", got, err)
			}
			if back != ga {
				t.Errorf("ParseGroupAddress(Format(%q)) = %v, want %v", tt.style, back, ga)
			}
		})
	}
}

func TestGroupAddressParts(t *testing.T) {
	ga := GroupAddress(0xFFFF)
	if ga.Main() != 31 || ga.Middle() != 7 || ga.Sub() != 255 {
		t.Errorf("parts of 0xFFFF = %d/%d/%d, want 31/7/255", ga.Main(), ga.Middle(), ga.Sub())
	}
	if got := NewGroupAddress(1, 2, 3).URLEncode(); got != "1%2F2%2F3" {
		t.Errorf("URLEncode() = %q, want %q", got, "1%2F2%2F3")
	}
}

func TestAddressStyleIsValid(t *testing.T) {
	for _, s := range []AddressStyle{StyleThreeLevel, StyleTwoLevel, StyleFree} {
		if !s.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", s)
		}
	}
	if AddressStyle("four-level").IsValid() {
		t.Error(`"four-level".IsValid() = true, want false`)
	}
}

// ─── Physical addresses ─────────────────────────────────────────────

func TestPhysicalAddress(t *testing.T) {
	pa := PhysicalAddress(0x1105)
	if got := pa.String(); got != "1.1.5" {
		t.Errorf("String() = %q, want %q", got, "1.1.5")
	}

	parsed, err := ParsePhysicalAddress("15.15.255")
	if err != nil {
		t.Fatalf("ParsePhysicalAddress() error = %v", err)
	}
	if parsed != 0xFFFF {
		t.Errorf("ParsePhysicalAddress(15.15.255) = 0x%04X, want 0xFFFF", uint16(parsed))
	}

	for _, bad := range []string{"16.0.0", "1.16.0", "1.1.256", "1.1", "1/1/1"} {
		if _, err := ParsePhysicalAddress(bad); !errors.Is(err, ErrInvalidPhysicalAddress) {
			t.Errorf("ParsePhysicalAddress(%q) error = %v, want ErrInvalidPhysicalAddress", bad, err)
		}
	}
}
