package pgutils

import (
	"testing"
)

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name string
		v    []float32
		want string
	}{
		{
			name: "empty slice",
			v:    []float32{},
			want: "[]",
		},
		{
			name: "nil slice",
			v:    nil,
			want: "[]",
		},
		{
			name: "single element",
			v:    []float32{0.5},
			want: "[0.5]",
		},
		{
			name: "two elements",
			v:    []float32{0.1, 0.2},
			want: "[0.1,0.2]",
		},
		{
			name: "three elements",
			v:    []float32{0.1, 0.2, 0.3},
			want: "[0.1,0.2,0.3]",
		},
		{
			name: "integer values",
			v:    []float32{1, 2, 3},
			want: "[1,2,3]",
		},
		{
			name: "negative values",
			v:    []float32{-0.5, 0, 0.5},
			want: "[-0.5,0,0.5]",
		},
		{
			name: "very small values",
			v:    []float32{0.0001, 0.0002},
			want: "[0.0001,0.0002]",
		},
		{
			name: "large values",
			v:    []float32{1000.5, 2000.25},
			want: "[1000.5,2000.25]",
		},
		{
			name: "mixed positive and negative",
			v:    []float32{-1.5, 0, 1.5, -2.25, 2.25},
			want: "[-1.5,0,1.5,-2.25,2.25]",
		},
		{
			name: "typical embedding dimension sample",
			v:    []float32{0.123, -0.456, 0.789, -0.012, 0.345},
			want: "[0.123,-0.456,0.789,-0.012,0.345]",
		},
		{
			name: "zeros",
			v:    []float32{0, 0, 0},
			want: "[0,0,0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatVector(tt.v)
			if got != tt.want {
				t.Errorf("FormatVector() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatVectorLargeSlice(t *testing.T) {
	// Test with a larger slice to ensure buffer allocation works
	size := 100
	v := make([]float32, size)
	for i := 0; i < size; i++ {
		v[i] = float32(i) * 0.1
	}

	result := FormatVector(v)

	// Should start with [ and end with ]
	if result[0] != '[' {
		t.Errorf("FormatVector() should start with '[', got %q", result[0])
	}
	if result[len(result)-1] != ']' {
		t.Errorf("FormatVector() should end with ']', got %q", result[len(result)-1])
	}

	// Should contain commas (at least size-1 of them)
	commaCount := 0
	for _, c := range result {
		if c == ',' {
			commaCount++
		}
	}
	if commaCount != size-1 {
		t.Errorf("FormatVector() should have %d commas, got %d", size-1, commaCount)
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float32
		wantErr bool
	}{
		{
			name:  "basic vector",
			input: "[0.1,0.2,0.3]",
			want:  []float32{0.1, 0.2, 0.3},
		},
		{
			name:  "with spaces",
			input: " [0.5, -0.25, 1] ",
			want:  []float32{0.5, -0.25, 1},
		},
		{
			name:  "empty literal",
			input: "[]",
			want:  nil,
		},
		{
			name:    "missing brackets",
			input:   "0.1,0.2",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "non-numeric element",
			input:   "[0.1,abc]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVector(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVector(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseVector(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseVector(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	v := []float32{0.25, -0.5, 0.125, 3}
	parsed, err := ParseVector(FormatVector(v))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if len(parsed) != len(v) {
		t.Fatalf("round trip len = %d, want %d", len(parsed), len(v))
	}
	for i := range v {
		if parsed[i] != v[i] {
			t.Errorf("round trip [%d] = %v, want %v", i, parsed[i], v[i])
		}
	}
}
