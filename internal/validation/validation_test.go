package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Acme   Corp  ", "acme-corp"},
		{"Acme & Sons, Ltd.", "acme-sons-ltd"},
		{"ACME", "acme"},
		{"--weird--input--", "weird-input"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestValidateProjectKey(t *testing.T) {
	require.NoError(t, ValidateProjectKey("ACME"))
	require.NoError(t, ValidateProjectKey("T42"))
	require.Error(t, ValidateProjectKey("a"))
	require.Error(t, ValidateProjectKey("acme"))
	require.Error(t, ValidateProjectKey("TOO-LONG-KEY"))
}
