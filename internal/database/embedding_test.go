package database

import (
	"testing"
)

func TestEncodeEmbedding(t *testing.T) {
	got := EncodeEmbedding([]float32{0.5, -1, 2.25})
	if got != "[0.5,-1,2.25]" {
		t.Errorf("EncodeEmbedding = %q", got)
	}
	if got := EncodeEmbedding(nil); got != "[]" {
		t.Errorf("EncodeEmbedding(nil) = %q, want []", got)
	}
}

func TestDecodeEmbedding(t *testing.T) {
	tests := []struct {
		input   string
		want    []float32
		wantErr bool
	}{
		{"[0.5,-1,2.25]", []float32{0.5, -1, 2.25}, false},
		{"[0.5, -1, 2.25]", []float32{0.5, -1, 2.25}, false},
		{" [1e-3,\n2] ", []float32{0.001, 2}, false},
		{"[]", []float32{}, false},
		{"", nil, true},
		{"0.5,1", nil, true},
		{"[0.5,abc]", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := DecodeEmbedding(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d values, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	original := make([]float32, 128)
	for i := range original {
		original[i] = float32(i)/127.0 - 0.5
	}

	decoded, err := DecodeEmbedding(EncodeEmbedding(original))
	if err != nil {
		t.Fatalf("DecodeEmbedding failed: %v", err)
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("value %d changed: %v -> %v", i, original[i], decoded[i])
		}
	}
}
