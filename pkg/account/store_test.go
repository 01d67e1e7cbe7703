package account

import "testing"

func TestStoreAddLookup(t *testing.T) {
	s := NewStore()
	if err := s.Add(New("aaa1", nil, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := s.Lookup("AAA1")
	if got == nil {
		t.Fatal("Lookup(\"AAA1\") = nil, want account")
	}
	if got.ID != "AAA1" {
		t.Errorf("ID = %q, want AAA1", got.ID)
	}
	if s.Lookup("missing") != nil {
		t.Error("Lookup of unknown id returned non-nil")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreAddRejectsInvalidID(t *testing.T) {
	s := NewStore()
	if err := s.Add(New("ZZ", nil, nil)); err == nil {
		t.Error("Add() with invalid id returned nil error")
	}
}
