package handler_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/session"
	"github.com/daap14/tenantgate/internal/tenant"
)

const testSecret = "test-secret"

type fixture struct {
	store    *auth.StaticRepository
	service  *auth.Service
	codec    *session.Codec
	resolver *tenant.Resolver
}

// newFixture builds a static store with alice@acme and bob@globex, both with
// password "pw".
func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	raw := fmt.Sprintf(`[
		{"username":"alice","passwordHash":%q,"company":"acme","label":"Acme Corp","projectId":"p-1"},
		{"username":"bob","passwordHash":%q,"company":"globex"}
	]`, hash, hash)

	store := auth.NewStaticRepository([]byte(raw), nil)
	return &fixture{
		store:    store,
		service:  auth.NewService(store),
		codec:    session.NewCodec(session.StaticSecret(secret), store),
		resolver: tenant.NewResolver(store),
	}
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}
