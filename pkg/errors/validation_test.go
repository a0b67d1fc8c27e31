package errors

import "testing"

func TestValidateFeatureID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "filter", false},
		{"with dash", "row-actions", false},
		{"with dot", "table.selection", false},
		{"empty", "", true},
		{"whitespace", "my feature", true},
		{"tab", "a\tb", true},
		{"control char", "a\x00b", true},
		{"too long", string(make([]byte, 129)), true},
	}

	for _, tt := range tests {
		err := ValidateFeatureID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateFeatureID(%q) error = %v, wantErr %v", tt.name, tt.id, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidFeature) {
			t.Errorf("%s: expected INVALID_FEATURE code, got %v", tt.name, GetCode(err))
		}
	}
}

func TestValidateViewName(t *testing.T) {
	tests := []struct {
		name    string
		view    string
		wantErr bool
	}{
		{"simple", "open-orders", false},
		{"spaces allowed", "my view", false},
		{"empty", "", true},
		{"path separator", "a/b", true},
		{"backslash", "a\\b", true},
		{"hidden", ".secret", true},
		{"control char", "a\x01b", true},
	}

	for _, tt := range tests {
		err := ValidateViewName(tt.view)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateViewName(%q) error = %v, wantErr %v", tt.name, tt.view, err, tt.wantErr)
		}
	}
}
