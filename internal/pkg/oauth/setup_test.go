package oauth

import (
	"testing"

	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseProvidersRegistersGoogleOnly(t *testing.T) {
	goth.ClearProviders()
	UseProviders("http://localhost:4000")

	p, err := goth.GetProvider("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = goth.GetProvider("facebook")
	assert.Error(t, err)
	assert.NotNil(t, gothic.Store)
	assert.Equal(t, "/auth/google/callback", CallbackPath("google"))
}
