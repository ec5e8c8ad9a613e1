package helpers

import (
	"testing"
)

func TestFloat64Pointer(t *testing.T) {
	for _, val := range []float64{3.14, 0.0, -42.5} {
		ptr := Float64Pointer(val)
		if ptr == nil {
			t.Fatalf("Float64Pointer returned nil for value %f", val)
		}
		if *ptr != val {
			t.Errorf("Float64Pointer returned %f, expected %f", *ptr, val)
		}
	}
}

func TestIntPointer(t *testing.T) {
	for _, val := range []int{50, 0, -1} {
		ptr := IntPointer(val)
		if ptr == nil {
			t.Fatalf("IntPointer returned nil for value %d", val)
		}
		if *ptr != val {
			t.Errorf("IntPointer returned %d, expected %d", *ptr, val)
		}
	}
}
