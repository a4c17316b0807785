package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/config"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:      "test-secret",
			AccessTokenTTL: 3600,
			Issuer:         "medledger-gateway",
		},
		Organizations: map[string]string{
			"hospital": "Hospital Org",
			"clinic":   "Clinic Org",
		},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := ledger.NewMemLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, testConfig(), logger.New("error"))
}

func TestServiceRegisterChecksOrganization(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	profile, err := service.Register(ctx, &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = service.Register(ctx, &types.Principal{
		Username: "mallory", Organization: "offshore", Role: types.RolePatient,
	}, "pw1")
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestServiceLoginIssuesParsableToken(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw1")
	require.NoError(t, err)

	token, profile, err := service.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", profile.Username)

	claims, err := service.ParseSession(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "patient", claims.Role)
	assert.Equal(t, "hospital", claims.Organization)
	assert.Equal(t, "medledger-gateway", claims.Issuer)
}

func TestServiceParseSessionRejectsForgedToken(t *testing.T) {
	service := newTestService(t)

	_, err := service.ParseSession("not.a.token")
	assert.True(t, types.HasCode(err, types.CodeInvalidCredential))

	// A token signed under a different secret must not validate.
	forger := newTestService(t)
	forger.cfg.JWT.SecretKey = "attacker-secret"
	ctx := context.Background()
	_, err = forger.Register(ctx, &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw1")
	require.NoError(t, err)
	forged, _, err := forger.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = service.ParseSession(forged)
	assert.True(t, types.HasCode(err, types.CodeInvalidCredential))
}

func TestServiceConsentFlow(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw")
	require.NoError(t, err)
	_, err = service.Register(ctx, &types.Principal{
		Username: "dr-jones", Organization: "clinic", Role: types.RoleDoctor,
	}, "pw")
	require.NoError(t, err)

	require.NoError(t, service.SubmitRequest(ctx, "alice", "dr-jones"))
	require.NoError(t, service.ApproveRequest(ctx, "alice", "dr-jones"))
	require.NoError(t, service.EnableAccess(ctx, "alice", "dr-jones", "sym-key-1"))

	wrapped, err := service.WrappedKey(ctx, "dr-jones", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)

	require.NoError(t, service.RemoveRequest(ctx, "alice", "dr-jones"))
	require.NoError(t, service.RemoveAccess(ctx, "alice", "dr-jones"))
}

func TestServiceAssetQueries(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, &types.Principal{
		Username: "alice", Organization: "hospital", Role: types.RolePatient,
	}, "pw")
	require.NoError(t, err)

	_, err = service.CreateMedicalRecord(ctx, "alice", "dr-jones", "h1")
	require.NoError(t, err)
	require.NoError(t, service.SubmitMedicalRecord(ctx, "alice", "h1"))

	history, err := service.AssetHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, history, 2, "registration plus record submission")

	assets, err := service.RangeQuery(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}
