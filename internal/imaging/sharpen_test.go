package imaging

import "testing"

func TestSharpenConstantImageUnchanged(t *testing.T) {
	img := solid(5, 7, 80)
	defer img.Close()

	out := Sharpen(img)
	defer out.Close()

	if out.Rows() != 5 || out.Cols() != 7 || out.Type() != img.Type() {
		t.Fatalf("Expected same size and type, got %dx%d type %v", out.Cols(), out.Rows(), out.Type())
	}
	for y := 0; y < out.Rows(); y++ {
		for x := 0; x < out.Cols(); x++ {
			if v := out.GetVecbAt(y, x); v[0] != 80 || v[1] != 80 || v[2] != 80 {
				t.Fatalf("pixel (%d,%d) = %v, want 80", x, y, v)
			}
		}
	}
}

func TestSharpenImpulse(t *testing.T) {
	img := solid(5, 5, 100)
	defer img.Close()
	// Bump only the green channel at the center.
	img.SetUCharAt(2, 2*3+1, 110)

	out := Sharpen(img)
	defer out.Close()

	tests := []struct {
		name     string
		row, col int
		want     uint8
	}{
		{name: "center", row: 2, col: 2, want: 150},
		{name: "orthogonal neighbor", row: 1, col: 2, want: 90},
		{name: "diagonal neighbor", row: 1, col: 1, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := out.GetVecbAt(tt.row, tt.col)
			if v[1] != tt.want {
				t.Errorf("green = %d, want %d", v[1], tt.want)
			}
			if v[0] != 100 || v[2] != 100 {
				t.Errorf("Expected other channels untouched, got %v", v)
			}
		})
	}
}
