package security

import "testing"

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if l.MaxDecompressedSize != 100*1024*1024 {
		t.Fatalf("unexpected decompressed cap: %d", l.MaxDecompressedSize)
	}
	if l.MaxXObjectDepth <= 0 {
		t.Fatalf("xobject depth must be positive")
	}
	if l.MaxXRefDepth <= 0 {
		t.Fatalf("xref depth must be positive")
	}
}

func TestEncryptionPolicyString(t *testing.T) {
	if EncryptionReject.String() != "reject" || EncryptionIgnore.String() != "ignore" {
		t.Fatalf("policy names wrong: %s %s", EncryptionReject, EncryptionIgnore)
	}
}
