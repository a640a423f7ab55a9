package layout

import "testing"

func TestDefaultKeymapLookups(t *testing.T) {
	km := DefaultKeymap()

	tests := []struct {
		name string
		code uint16
	}{
		{"A", 0x04},
		{"Z", 0x1D},
		{"1", 0x1E},
		{"0", 0x27},
		{"ESC", 0x29},
		{"F1", 0x3A},
		{"F12", 0x45},
		{"LCTL", 0xE0},
		{"FN", 0x1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := km.Code(tt.name)
			if !ok || code != tt.code {
				t.Fatalf("Code(%s) = 0x%04X, %v; want 0x%04X", tt.name, code, ok, tt.code)
			}
			if got := km.Name(tt.code); got != tt.name {
				t.Fatalf("Name(0x%04X) = %s, want %s", tt.code, got, tt.name)
			}
		})
	}

	if got := km.Name(0xBEEF); got != "0xBEEF" {
		t.Fatalf("Name(0xBEEF) = %s", got)
	}
}

func TestKeymapParse(t *testing.T) {
	km := DefaultKeymap()

	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "ESC", want: 0x29},
		{in: "1", want: 0x1E},
		{in: "0x1234", want: 0x1234},
		{in: "300", want: 300},
		{in: "NOPE", wantErr: true},
		{in: "0x10000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := km.Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Parse(%q) = 0x%04X, want 0x%04X", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewKeymapRejectsDuplicateCodes(t *testing.T) {
	if _, err := NewKeymap(map[string]uint16{"A": 1, "B": 1}); err == nil {
		t.Fatalf("expected error for duplicate code")
	}
}
