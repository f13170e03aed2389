package validation

import (
	"testing"
)

func TestValidateDatasetName(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		wantErr bool
	}{
		// Valid names
		{"simple", "churn", false},
		{"single char", "a", false},
		{"with digits", "survey2024", false},
		{"underscored", "customer_churn", false},
		{"hyphenated", "q3-revenue", false},
		{"versioned dot", "survey.v2", false},
		{"mixed case", "Housing", false},

		// Invalid names - traversal and injection attempts
		{"empty", "", true},
		{"parent traversal", "../etc/passwd", true},
		{"embedded traversal", "data/../../secrets", true},
		{"absolute path", "/etc/passwd", true},
		{"path separator", "data/churn", true},
		{"backslash", `data\churn`, true},
		{"leading dot", ".hidden", true},
		{"leading hyphen", "-flag", true},
		{"sql injection", "x'; DROP TABLE runs--", true},
		{"spaces", "my data", true},
		{"too long", strings131(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatasetName(tt.dataset)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDatasetName(%q) error = %v, wantErr %v", tt.dataset, err, tt.wantErr)
			}
		})
	}
}

func strings131() string {
	b := make([]byte, 131)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestValidateDatasetNames(t *testing.T) {
	tests := []struct {
		name     string
		datasets []string
		wantErr  bool
	}{
		{"all valid", []string{"churn", "survey2024", "q3-revenue"}, false},
		{"one invalid", []string{"churn", "../bad", "survey"}, true},
		{"all invalid", []string{"../a", "/b"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatasetNames(tt.datasets)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDatasetNames(%v) error = %v, wantErr %v", tt.datasets, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeDatasetName(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		want    string
		wantErr bool
	}{
		{"lowercase passthrough", "churn", "churn", false},
		{"uppercase normalized", "CHURN", "churn", false},
		{"mixed case", "CustomerChurn", "customerchurn", false},
		{"with spaces trimmed", "  churn  ", "churn", false},
		{"invalid rejected", "../bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeDatasetName(tt.dataset)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeDatasetName(%q) error = %v, wantErr %v", tt.dataset, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeDatasetName(%q) = %q, want %q", tt.dataset, got, tt.want)
			}
		})
	}
}

func TestFileSlug(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"plain words", "analyze customer churn", 30, "analyze_customer_churn"},
		{"punctuation stripped", "what drives churn?", 30, "what_drives_churn"},
		{"truncated", "a very long query about revenue trends over time", 12, "a_very_long"},
		{"trailing space trimmed", "churn   ", 30, "churn"},
		{"nothing survives", "?!#$", 30, "query"},
		{"empty input", "", 30, "query"},
		{"zero maxLen uses default", "analyze customer churn rates please", 0, "analyze_customer_churn_rates_p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileSlug(tt.text, tt.maxLen); got != tt.want {
				t.Errorf("FileSlug(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
		})
	}
}
