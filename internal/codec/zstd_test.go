package codec

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"text", []byte("<html><body>hello</body></html>")},
		{"repetitive", bytes.Repeat([]byte("linkdump "), 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := Compress(tt.in)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if tt.in == nil {
				if packed != nil {
					t.Fatalf("Compress(nil) = %v, want nil", packed)
				}
				return
			}

			out, err := Decompress(packed)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(out, tt.in) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(tt.in))
			}
		})
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("definitely not zstd")); err == nil {
		t.Error("expected an error for invalid input")
	}
}
