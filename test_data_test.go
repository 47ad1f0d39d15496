package colmean

import "testing"

func TestGenerateMatrix(t *testing.T) {
	a := GenerateMatrix[float32](40, 25, 12345)
	b := GenerateMatrix[float32](40, 25, 12345)
	c := GenerateMatrix[float32](40, 25, 54321)

	if len(a) != 1000 {
		t.Fatalf("Expected 1000 elements, got %d", len(a))
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("GenerateMatrix is not deterministic at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
		if a[i] < 0 || a[i] >= 1 {
			t.Errorf("Value %d out of range [0, 1): %v", i, a[i])
		}
	}
	if same {
		t.Error("Different seeds should produce different data")
	}
}

func TestGenerateMatrixRange(t *testing.T) {
	lo, hi := -5.0, 10.0
	for i, v := range GenerateMatrixRange(100, 10, 42, lo, hi) {
		if v < lo || v >= hi {
			t.Errorf("Value %d out of range [%v, %v): %v", i, lo, hi, v)
		}
	}
}

func TestTranspose(t *testing.T) {
	// 2×3 row-major
	data := []int{1, 2, 3, 4, 5, 6}
	want := []int{1, 4, 2, 5, 3, 6}

	got := Transpose(data, 2, 3)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Transpose = %v, want %v", got, want)
		}
	}
	back := Transpose(got, 3, 2)
	for i := range data {
		if back[i] != data[i] {
			t.Fatalf("Transpose is not its own inverse: %v", back)
		}
	}
}
