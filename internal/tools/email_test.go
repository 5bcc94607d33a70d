package tools

import "testing"

func TestNormalizeSpokenEmail(t *testing.T) {
	tests := []struct {
		name   string
		spoken string
		want   string
	}{
		{
			name:   "spoken punctuation",
			spoken: "john dot doe at example dot com",
			want:   "john.doe@example.com",
		},
		{
			name:   "already literal",
			spoken: "john.doe@example.com",
			want:   "john.doe@example.com",
		},
		{
			name:   "phonetic alphabet",
			spoken: "juliet oscar echo at example dot com",
			want:   "joe@example.com",
		},
		{
			name:   "letter for word pattern",
			spoken: "a for apple b for berlin at example dot com",
			want:   "ab@example.com",
		},
		{
			name:   "as in pattern",
			spoken: "m as in mike at example dot de",
			want:   "m@example.de",
		},
		{
			name:   "digit words",
			spoken: "agent zero seven at example dot com",
			want:   "agent07@example.com",
		},
		{
			name:   "underscore and dash",
			spoken: "max underscore m dash k at example dot org",
			want:   "max_m-k@example.org",
		},
		{
			name:   "mixed case input",
			spoken: "John DOT Doe AT Example DOT Com",
			want:   "john.doe@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSpokenEmail(tt.spoken)
			if err != nil {
				t.Fatalf("NormalizeSpokenEmail(%q) returned error: %v", tt.spoken, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSpokenEmail(%q) = %q, want %q", tt.spoken, got, tt.want)
			}
		})
	}
}

func TestNormalizeSpokenEmailRejectsGarbage(t *testing.T) {
	tests := []struct {
		name   string
		spoken string
	}{
		{name: "empty", spoken: ""},
		{name: "no at sign", spoken: "john dot doe example dot com"},
		{name: "two at signs", spoken: "john at doe at example dot com"},
		{name: "no domain dot", spoken: "john at examplecom"},
		{name: "empty local part", spoken: "at example dot com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := NormalizeSpokenEmail(tt.spoken); err == nil {
				t.Errorf("NormalizeSpokenEmail(%q) = %q, want error", tt.spoken, got)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail("caller@example.com") {
		t.Error("expected caller@example.com to be valid")
	}
	if ValidEmail("caller@@example.com") {
		t.Error("expected caller@@example.com to be invalid")
	}
	if ValidEmail("caller@localhost") {
		t.Error("expected dotless domain to be invalid")
	}
}
