package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmountXOF(t *testing.T) {
	assert.Equal(t, "0 XOF", FormatAmountXOF(0))
	assert.Equal(t, "500 XOF", FormatAmountXOF(500))
	assert.Equal(t, "15 000 XOF", FormatAmountXOF(15000))
	assert.Equal(t, "1 250 000 XOF", FormatAmountXOF(1250000))
	assert.Equal(t, "-10 000 XOF", FormatAmountXOF(-10000))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(10, 3, "manager")
	assert.NoError(t, err)

	claims, err := ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(10), claims.UserID)
	assert.Equal(t, uint(3), claims.BusinessID)
	assert.Equal(t, "manager", claims.Role)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}
