package models

import "testing"

func TestFloat32ByteConversion(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		original := []float32{1.0, -0.5, 3.14, 0.0, -100.0}
		bytes := Float32ToBytes(original)
		restored := BytesToFloat32(bytes)

		if len(restored) != len(original) {
			t.Fatalf("length mismatch: %d != %d", len(restored), len(original))
		}
		for i := range original {
			if original[i] != restored[i] {
				t.Fatalf("value mismatch at %d: %f != %f", i, original[i], restored[i])
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		bytes := Float32ToBytes([]float32{})
		restored := BytesToFloat32(bytes)
		if len(restored) != 0 {
			t.Fatalf("expected empty, got %d", len(restored))
		}
	})

	t.Run("invalid byte length returns nil", func(t *testing.T) {
		result := BytesToFloat32([]byte{1, 2, 3})
		if result != nil {
			t.Fatal("expected nil for invalid byte length")
		}
	})
}
