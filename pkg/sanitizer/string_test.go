package sanitizer

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Club House  ",
			want:  "Club House",
		},
		{
			name:  "multiple spaces between words",
			input: "Swimming    Pool",
			want:  "Swimming Pool",
		},
		{
			name:  "tabs and newlines",
			input: "Banquet\t\nHall",
			want:  "Banquet Hall",
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
		{
			name:  "preserve special characters",
			input: " Gym & Spa™ ",
			want:  "Gym & Spa™",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	input := "  Tennis   Court  "
	once := NormalizeName(input)
	twice := NormalizeName(once)
	if once != twice {
		t.Errorf("NormalizeName not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizeNotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips control characters",
			input: "birthday\x00 party\x1b",
			want:  "birthday party",
		},
		{
			name:  "collapses whitespace",
			input: "need  extra\tchairs",
			want:  "need extra chairs",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeNotes(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeNotes(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("  res-1042  "); got != "res-1042" {
		t.Errorf("NormalizeID = %q, want %q", got, "res-1042")
	}
}
