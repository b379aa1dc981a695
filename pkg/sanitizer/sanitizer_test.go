package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Ward 3  ",
			want:  "Ward 3",
		},
		{
			name:  "multiple spaces between words",
			input: "Ward    3",
			want:  "Ward 3",
		},
		{
			name:  "tabs and newlines",
			input: "Ward\t\n3",
			want:  "Ward 3",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeRoom(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "uppercases",
			input: "ward 3",
			want:  "WARD 3",
		},
		{
			name:  "trims and uppercases",
			input: "  205a ",
			want:  "205A",
		},
		{
			name:  "collapses internal whitespace",
			input: "icu   east",
			want:  "ICU EAST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRoom(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeRoom(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
