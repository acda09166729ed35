package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/internal/pkg/apiclient"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
)

func TestFeeEditorBackend(t *testing.T) {
	var local, remote feeplan.Backend
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		local = feeEditor{d: &Deps{FeePlans: &fakeFeePlans{}}, a: providerActor}.backend(c)
		remote = feeEditor{d: &Deps{PortalAPI: apiclient.New("http://api.internal")}, a: providerActor}.backend(c)
		return nil
	})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "session_id=abc")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	require.IsType(t, feeplan.ActorBackend{}, local)
	assert.Equal(t, providerActor, local.(feeplan.ActorBackend).Actor)
	client, ok := remote.(*apiclient.Client)
	require.True(t, ok)
	assert.Equal(t, "session_id=abc", client.Cookie)
	assert.Equal(t, "http://api.internal", client.BaseURL)
}
