package keyboard

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestParseRgbAllTriples(t *testing.T) {
	// Every channel value round-trips through its lowercase hex encoding.
	for v := 0; v < 256; v++ {
		for _, want := range []Rgb{
			{R: uint8(v), G: uint8(255 - v), B: uint8(v / 2)},
			{R: uint8(v / 3), G: uint8(v), B: uint8(255 - v)},
		} {
			s := fmt.Sprintf("%02x%02x%02x", want.R, want.G, want.B)
			got, err := ParseRgb(s)
			if err != nil {
				t.Fatalf("ParseRgb(%q) returned error: %v", s, err)
			}
			if got != want {
				t.Fatalf("ParseRgb(%q) = %+v, want %+v", s, got, want)
			}
			if got.String() != s {
				t.Fatalf("String() = %q, want %q", got.String(), s)
			}
		}
	}
}

func TestParseRgbRejectsMalformed(t *testing.T) {
	tests := []string{"", "#112233", "11223", "1122334", "gg0000", "12345z"}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseRgb(in); err == nil {
				t.Fatalf("expected error for %q", in)
			}
		})
	}
}

func TestRgbJSON(t *testing.T) {
	data, err := json.Marshal(NewRgb(0x11, 0x22, 0x33))
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != "[17,34,51]" {
		t.Fatalf("Marshal = %s, want [17,34,51]", data)
	}

	var c Rgb
	if err := json.Unmarshal([]byte("[1,2,3]"), &c); err != nil || c != NewRgb(1, 2, 3) {
		t.Fatalf("Unmarshal = %v, %v", c, err)
	}

	for _, bad := range []string{"[1,2,300]", "[1,2]", "[1,2,3,4]", "[]", `"#010203"`} {
		t.Run(bad, func(t *testing.T) {
			c := NewRgb(9, 9, 9)
			if err := json.Unmarshal([]byte(bad), &c); err == nil {
				t.Fatalf("Unmarshal(%s) = %v, want error", bad, c)
			}
			if c != NewRgb(9, 9, 9) {
				t.Fatalf("Unmarshal(%s) changed the color to %v", bad, c)
			}
		})
	}
}

func TestMatrixPressed(t *testing.T) {
	m := NewMatrix(6, 16)
	m.Set(2, 5, true)
	m.Set(5, 15, true)

	if !m.Pressed(2, 5) || !m.Pressed(5, 15) {
		t.Fatalf("expected (2,5) and (5,15) pressed, data=%v", m.Data)
	}
	if m.Pressed(0, 0) || m.Pressed(6, 0) || m.Pressed(-1, 3) {
		t.Fatalf("unexpected pressed state")
	}

	m.Set(2, 5, false)
	if m.Pressed(2, 5) {
		t.Fatalf("expected (2,5) released")
	}
}

func TestMatrixJSONUsesIntegerArray(t *testing.T) {
	m := NewMatrix(1, 8)
	m.Set(0, 0, true)
	m.Set(0, 7, true)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"rows":1,"cols":8,"data":[129]}` {
		t.Fatalf("Marshal = %s", data)
	}

	var back Matrix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !back.Pressed(0, 7) || back.Rows != 1 || back.Cols != 8 {
		t.Fatalf("round trip lost state: %+v", back)
	}
}

func TestParseBoardID(t *testing.T) {
	id, err := ParseBoardID("42")
	if err != nil {
		t.Fatalf("ParseBoardID returned error: %v", err)
	}
	if id != 42 || id.String() != "42" {
		t.Fatalf("id = %v", id)
	}
	if _, err := ParseBoardID("x"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}
