package validation

import "testing"

// dv для тела 800197268 = 4 (известный табличный пример DIAN).
func TestIsValidTaxID(t *testing.T) {
	tests := []struct {
		name  string
		taxID string
		want  bool
	}{
		{"valid with hyphen", "800197268-4", true},
		{"valid without hyphen", "8001972684", true},
		{"wrong check digit", "800197268-5", false},
		{"empty", "", false},
		{"single digit", "4", false},
		{"letters", "80019A268-4", false},
		{"too long", "12345678901234567-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTaxID(tt.taxID); got != tt.want {
				t.Fatalf("IsValidTaxID(%q) = %v, want %v", tt.taxID, got, tt.want)
			}
		})
	}
}
