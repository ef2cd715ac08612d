package deck

import "testing"

func TestParseCard(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Card
		wantErr  bool
	}{
		{name: "red three", input: "red-3", expected: Card{ID: "red-3", Color: Red, Value: 3}},
		{name: "purple nine", input: "purple-9", expected: Card{ID: "purple-9", Color: Purple, Value: 9}},
		{name: "value zero", input: "red-0", wantErr: true},
		{name: "value ten", input: "blue-10", wantErr: true},
		{name: "unknown color", input: "black-4", wantErr: true},
		{name: "missing separator", input: "green5", wantErr: true},
		{name: "placeholder", input: "hidden-0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCard(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCard(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCard(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseCard(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder(3)
	if !p.IsPlaceholder() {
		t.Fatalf("Placeholder(3) should report IsPlaceholder")
	}
	if p.ID != "hidden-3" {
		t.Errorf("unexpected placeholder id %q", p.ID)
	}
	if NewCard(Red, 1).IsPlaceholder() {
		t.Errorf("real card reported as placeholder")
	}
}

func TestColorAndValueValid(t *testing.T) {
	for _, c := range Colors {
		if !c.Valid() {
			t.Errorf("color %q should be valid", c)
		}
	}
	if Hidden.Valid() {
		t.Errorf("hidden color should not be valid")
	}
	if Value(0).Valid() || Value(10).Valid() {
		t.Errorf("values outside 1..9 should be invalid")
	}
}
