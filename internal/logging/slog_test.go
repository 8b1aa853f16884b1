package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeEmail(t *testing.T) {
	assert.Empty(t, AnonymizeEmail(""))

	a := AnonymizeEmail("agent@example.com")
	b := AnonymizeEmail("agent@example.com")
	c := AnonymizeEmail("other@example.com")

	assert.True(t, strings.HasPrefix(a, "user:"))
	assert.Equal(t, a, b, "same email must hash identically for correlation")
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "agent@example.com")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))

	masked := SanitizeToken("ya29.secret-token-value")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "23")
}

func TestErrNilSafe(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, slog.KindGroup, attr.Value.Kind())

	attr = Err(errors.New("boom"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "boom", attr.Value.String())
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, KeyConnection, Connection("c1").Key)
	assert.Equal(t, "c1", Connection("c1").Value.String())
	assert.Equal(t, KeyProvider, Provider("google").Key)
	assert.Equal(t, KeyTier, Tier("explicit").Key)
	assert.Equal(t, KeyStatus, Status(StatusSuccess).Key)
	assert.Equal(t, KeyTool, Tool("booking_create_event").Key)
}
