package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"absolute path", "/var/lib/dash/dash.db", false},
		{"relative path", "data/dash.db", false},
		{"in-memory database", ":memory:", false},
		{"empty", "", true},
		{"traversal", "../../etc/passwd", true},
		{"hidden traversal", "data/../../secret.db", true},
		{"nul byte", "data/\x00dash.db", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
