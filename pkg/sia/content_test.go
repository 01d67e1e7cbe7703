package sia

import "testing"

func TestLexContentSIADCS(t *testing.T) {
	c, err := LexContent(SIADCS, []byte("|Nri1/BA501]_14:12:04,09-25-2019"))
	if err != nil {
		t.Fatalf("LexContent: %v", err)
	}
	if c.RI != "1" {
		t.Errorf("RI = %q, want 1", c.RI)
	}
	if c.Code != "BA" {
		t.Errorf("Code = %q, want BA", c.Code)
	}
	if c.Message != "501" {
		t.Errorf("Message = %q, want 501", c.Message)
	}
	if c.Timestamp != "14:12:04,09-25-2019" {
		t.Errorf("Timestamp = %q", c.Timestamp)
	}
}

func TestLexContentTolerantOfLeadingFiller(t *testing.T) {
	c, err := LexContent(SIADCS, []byte("xxx|Nri1/BA501]"))
	if err != nil {
		t.Fatalf("LexContent with leading filler: %v", err)
	}
	if c.Code != "BA" {
		t.Errorf("Code = %q, want BA", c.Code)
	}
}

func TestLexContentADMCID(t *testing.T) {
	c, err := LexContent(ADMCID, []byte("|1130 01 005]"))
	if err != nil {
		t.Fatalf("LexContent: %v", err)
	}
	if c.EventQualifier != "1" || c.EventType != "130" {
		t.Errorf("qualifier/type = %q/%q", c.EventQualifier, c.EventType)
	}
	if c.Partition != "01" {
		t.Errorf("Partition = %q, want 01", c.Partition)
	}
	if c.RI != "005" {
		t.Errorf("RI = %q, want 005", c.RI)
	}
}

func TestLexContentNullIsTrivial(t *testing.T) {
	c, err := LexContent(Null, []byte{})
	if err != nil {
		t.Fatalf("LexContent(Null): %v", err)
	}
	if c == nil {
		t.Fatal("expected a non-nil empty Content for NULL")
	}
}

func TestLexContentUnrecognizedType(t *testing.T) {
	if _, err := LexContent("FOO", []byte("|Nri1/BA501]")); err != ErrUnrecognizedCode {
		t.Fatalf("err = %v, want ErrUnrecognizedCode", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("14:12:04,09-25-2019")
	if !ok {
		t.Fatal("ParseTimestamp failed to parse a well-formed timestamp")
	}
	if ts.Year() != 2019 || ts.Month() != 9 || ts.Day() != 25 {
		t.Errorf("parsed date = %v, want 2019-09-25", ts)
	}
	if _, ok := ParseTimestamp(""); ok {
		t.Error("ParseTimestamp(\"\") reported ok")
	}
	if _, ok := ParseTimestamp("garbage"); ok {
		t.Error("ParseTimestamp(\"garbage\") reported ok")
	}
}
