package casefile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"Zoster", "%zoster%"},
		{"100%", `%100\%%`},
		{"herpes_zoster", `%herpes\_zoster%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPattern(tt.key), tt.key)
	}
}

func TestPostgresRepository_EmptyKey(t *testing.T) {
	_, err := NewPostgresRepository(nil).GetCase(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}
