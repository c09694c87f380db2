package cryptox

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Use a throwaway pepper so tests never touch a real pepper file.
	dir, err := filepath.Abs("testdata")
	if err != nil {
		panic(err)
	}
	SetPepperPath(filepath.Join(dir, "pepper"))
	m.Run()
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyPassword("correct horse battery staple", hash))
	require.ErrorIs(t, VerifyPassword("wrong password", hash), ErrPasswordMismatch)
}

func TestHashIsSalted(t *testing.T) {
	a, err := HashPassword("same password")
	require.NoError(t, err)
	b, err := HashPassword("same password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, VerifyPassword("pw", "not-a-phc-string"))
	require.Error(t, VerifyPassword("pw", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
	require.Error(t, VerifyPassword("pw", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}
