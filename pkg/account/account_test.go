package account

import "testing"

func TestValidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"min length", "AAA", true},
		{"max length", "0123456789ABCDEF", true},
		{"too short", "AA", false},
		{"too long", "0123456789ABCDEF0", false},
		{"non-hex", "ZZZ", false},
		{"lowercase hex ok", "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidID(tt.id); got != tt.want {
				t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestAccountNextSequence(t *testing.T) {
	a := New("AAA", nil, nil)
	var last uint32
	for i := 0; i < 10005; i++ {
		last = a.NextSequence()
	}
	if last >= 10000 {
		t.Fatalf("NextSequence() = %d, want < 10000", last)
	}
}

func TestAccountEncrypted(t *testing.T) {
	plain := New("AAA", nil, nil)
	if plain.Encrypted() {
		t.Error("account with no key reported Encrypted() = true")
	}
	enc := New("BBB", []byte("0123456789ABCDEF"), nil)
	if !enc.Encrypted() {
		t.Error("account with key reported Encrypted() = false")
	}
}
