// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/pkg/errutil"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"empty", "", false},
		{"14 characters", strings.Repeat("a", 14), false},
		{"15 characters", strings.Repeat("a", 15), true},
		{"64 characters", strings.Repeat("a", 64), true},
		{"65 characters", strings.Repeat("a", 65), false},
		{"no character classes required", "aaaaaaaaaaaaaaaaaaaa", true},
		{"multibyte counted as characters", strings.Repeat("é", 15), true},
		{"multibyte over the limit", strings.Repeat("密", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			assert.Equal(t, tt.valid, auth.IsPasswordValid(tt.password))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, auth.CodeInvalidPassword)
		})
	}
}
