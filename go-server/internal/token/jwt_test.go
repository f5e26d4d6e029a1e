package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateValidate_RoundTrip(t *testing.T) {
	tm := NewManager("test-secret", time.Hour)
	userID := uuid.New()

	tokenStr, err := tm.Generate(userID)
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	claims, err := tm.Validate(tokenStr)
	assert.NoError(t, err)
	assert.Equal(t, userID, *claims.UserID)
}

func TestValidate_ExpiredToken(t *testing.T) {
	tm := NewManager("test-secret", -time.Minute)

	tokenStr, err := tm.Generate(uuid.New())
	assert.NoError(t, err)

	_, err = tm.Validate(tokenStr)
	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	tm := NewManager("test-secret", time.Hour)
	other := NewManager("other-secret", time.Hour)

	tokenStr, err := tm.Generate(uuid.New())
	assert.NoError(t, err)

	_, err = other.Validate(tokenStr)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	tm := NewManager("test-secret", time.Hour)

	for _, tokenStr := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tm.Validate(tokenStr)
		assert.Error(t, err, "token %q should not validate", tokenStr)
	}
}
