package wardgraph

import (
	"errors"
	"testing"
)

func TestParseDiagnosis(t *testing.T) {
	tests := []struct {
		raw      string
		expected Diagnosis
		wantErr  bool
	}{
		{"01", DiagInfarction, false},
		{"02", DiagStroke, false},
		{"03", DiagHemorrhage, false},
		{"04", DiagAortic, false},
		{"05", DiagAortic, false},
		{"01-acute myocardial infarction", DiagInfarction, false},
		{"02 - cerebral infarction", DiagStroke, false},
		{"I21", DiagInfarction, false},
		{"i63", DiagStroke, false},
		{" I60 ", DiagHemorrhage, false},
		{"", "", true},
		{"99", "", true},
		{"J18", "", true},
		{"-no code", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDiagnosis(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownDiagnosis) {
					t.Fatalf("ParseDiagnosis(%q) err = %v, want ErrUnknownDiagnosis", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDiagnosis(%q): %v", tt.raw, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDiagnosis(%q) = %s, want %s", tt.raw, got, tt.expected)
			}
		})
	}
}
