package sia

import (
	"bytes"
	"testing"
)

var testAESKey = []byte("0123456789ABCDEF")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintexts := [][]byte{
		[]byte("|Nri1/BA501]"),
		[]byte(""),
		bytes.Repeat([]byte("x"), 64),
	}
	for _, pt := range plaintexts {
		ct, err := EncryptPayload(testAESKey, pt)
		if err != nil {
			t.Fatalf("EncryptPayload: %v", err)
		}
		got, err := DecryptPayload(testAESKey, ct)
		if err != nil {
			t.Fatalf("DecryptPayload: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("round trip = %q, want %q", got, pt)
		}
	}
}

func TestEncryptPayloadFreshIVEachCall(t *testing.T) {
	pt := []byte("|Nri1/BA501]")
	a, err := EncryptPayload(testAESKey, pt)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	b, err := EncryptPayload(testAESKey, pt)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptPayloadRejectsBadLength(t *testing.T) {
	if _, err := DecryptPayload(testAESKey, []byte{0x01, 0x02}); err == nil {
		t.Fatal("DecryptPayload accepted undersized data")
	}
}

func TestDecryptPayloadRejectsBadPadding(t *testing.T) {
	ct, err := EncryptPayload(testAESKey, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	ct[len(ct)-1] ^= 0xFF
	if _, err := DecryptPayload(testAESKey, ct); err == nil {
		t.Fatal("DecryptPayload accepted corrupted padding")
	}
}
