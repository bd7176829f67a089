package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	KeyARN string `validate:"omitempty,arn"`
	Role   string `validate:"omitempty,pgident"`
}

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterCustomValidators(v))

	tests := []struct {
		name    string
		in      sample
		wantErr bool
	}{
		{"empty", sample{}, false},
		{"valid arn", sample{KeyARN: "arn:aws:kms:eu-west-1:123456789012:key/abcd"}, false},
		{"govcloud arn", sample{KeyARN: "arn:aws-us-gov:kms:us-gov-west-1:123456789012:key/abcd"}, false},
		{"bad arn", sample{KeyARN: "kms:key/abcd"}, true},
		{"valid role", sample{Role: "pg_read_all_data"}, false},
		{"quoted role", sample{Role: `evil"; DROP`}, true},
		{"uppercase role", sample{Role: "Admin"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPgIdent(t *testing.T) {
	assert.True(t, IsPgIdent("parish_0123456789abcdef01234567"))
	assert.False(t, IsPgIdent(""))
	assert.False(t, IsPgIdent("1abc"))
}
