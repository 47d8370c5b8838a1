package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// fakeDirectory is an in-memory identity directory.
type fakeDirectory struct {
	principals map[string]*azure.ServicePrincipal // appID -> SP
	grants     map[string]*azure.OAuth2Grant      // "client|resource" -> grant
	configured map[string][]string                // "blueprint|resource" -> scopes

	failStep string // "create", "update", "inheritable", "lookup"

	createCalls int
	updateCalls int
	nextGrantID int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		principals: make(map[string]*azure.ServicePrincipal),
		grants:     make(map[string]*azure.OAuth2Grant),
		configured: make(map[string][]string),
	}
}

func (f *fakeDirectory) addPrincipal(appID, objectID string) {
	f.principals[appID] = &azure.ServicePrincipal{ObjectID: objectID, AppID: appID}
}

func pairKey(client, resource string) string { return client + "|" + resource }

func (f *fakeDirectory) ServicePrincipalByAppID(_ context.Context, appID string) (*azure.ServicePrincipal, error) {
	if f.failStep == "lookup" {
		return nil, errors.New("graph unavailable")
	}
	return f.principals[appID], nil
}

func (f *fakeDirectory) OAuth2Grants(_ context.Context, client, resource string) ([]azure.OAuth2Grant, error) {
	if g, ok := f.grants[pairKey(client, resource)]; ok {
		return []azure.OAuth2Grant{*g}, nil
	}
	return nil, nil
}

func (f *fakeDirectory) CreateOAuth2Grant(_ context.Context, grant azure.OAuth2Grant) error {
	if f.failStep == "create" {
		return errors.New("insufficient privileges")
	}
	f.createCalls++
	f.nextGrantID++
	grant.ID = fmt.Sprintf("grant-%d", f.nextGrantID)
	f.grants[pairKey(grant.ClientID, grant.ResourceID)] = &grant
	return nil
}

func (f *fakeDirectory) UpdateOAuth2GrantScope(_ context.Context, grantID, scope string) error {
	if f.failStep == "update" {
		return errors.New("insufficient privileges")
	}
	f.updateCalls++
	for _, g := range f.grants {
		if g.ID == grantID {
			g.Scope = scope
			return nil
		}
	}
	return errors.New("grant not found: " + grantID)
}

func (f *fakeDirectory) ConfigureInheritablePermissions(_ context.Context, blueprintAppID, resourceAppID string, scopes []string) (bool, error) {
	if f.failStep == "inheritable" {
		return false, errors.New("blueprint application not found")
	}
	key := pairKey(blueprintAppID, resourceAppID)
	if existing, ok := f.configured[key]; ok && strings.Join(existing, " ") == strings.Join(scopes, " ") {
		return true, nil
	}
	f.configured[key] = scopes
	return false, nil
}

func testConfig() *models.Configuration {
	return &models.Configuration{
		Static: models.StaticConfig{TenantID: "tenant-1"},
		Dynamic: models.DynamicConfig{
			BlueprintID: "blueprint-app",
			BotID:       "agent-app",
		},
	}
}

func manifest(servers ...models.ToolServer) *models.ToolingManifest {
	return &models.ToolingManifest{Servers: servers}
}

func wiredDirectory() *fakeDirectory {
	dir := newFakeDirectory()
	dir.addPrincipal("blueprint-app", "sp-blueprint")
	dir.addPrincipal("agent-app", "sp-agent")
	dir.addPrincipal("resource-x", "sp-resource-x")
	return dir
}

func TestRunAppliesFullChain(t *testing.T) {
	dir := wiredDirectory()
	cfg := testConfig()
	s := New(dir, cfg, zap.NewNop())

	err := s.Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	))
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())

	// One grant per pair: blueprint->resource and agent->resource.
	assert.Len(t, dir.grants, 2)
	assert.Equal(t, "S1", dir.grants[pairKey("sp-blueprint", "sp-resource-x")].Scope)
	assert.Equal(t, "S1", dir.grants[pairKey("sp-agent", "sp-resource-x")].Scope)

	consent := cfg.ConsentFor("resource-x")
	require.NotNil(t, consent)
	assert.True(t, consent.Granted)
	require.NotNil(t, consent.GrantedAt)
	assert.Equal(t, models.InheritableConfigured, consent.Inheritable)
}

func TestRerunReplacesGrantWithUnionScopes(t *testing.T) {
	dir := wiredDirectory()
	cfg := testConfig()

	// First run requests S1.
	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	)))
	assert.Equal(t, 2, dir.createCalls)

	// Manifest now also requires S2 via a second server on the same
	// resource application.
	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
		models.ToolServer{Name: "server-y", URL: "https://y", Scope: "S2", Audience: "resource-x"},
	)))

	// Replaced, not duplicated.
	assert.Equal(t, 2, dir.createCalls, "rerun must not create new grant objects")
	assert.Equal(t, 2, dir.updateCalls)
	assert.Len(t, dir.grants, 2)
	assert.Equal(t, "S1 S2", dir.grants[pairKey("sp-blueprint", "sp-resource-x")].Scope)
	assert.Equal(t, "S1 S2", dir.grants[pairKey("sp-agent", "sp-resource-x")].Scope)

	consent := cfg.ConsentFor("resource-x")
	require.NotNil(t, consent)
	assert.Equal(t, []string{"S1", "S2"}, consent.Scopes)
}

func TestRerunConverges(t *testing.T) {
	dir := wiredDirectory()
	cfg := testConfig()
	m := manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S2 S1 S1", Audience: "resource-x"},
	)

	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), m))
	first := dir.grants[pairKey("sp-blueprint", "sp-resource-x")].Scope

	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), m))
	second := dir.grants[pairKey("sp-blueprint", "sp-resource-x")].Scope

	assert.Equal(t, "S1 S2", first, "scopes deduplicated and sorted")
	assert.Equal(t, first, second, "rerun converges to the same scope set")
	assert.Len(t, dir.grants, 2, "exactly one grant per pair after rerun")
}

func TestRerunRecordsPreExistingInheritablePermissions(t *testing.T) {
	dir := wiredDirectory()
	cfg := testConfig()
	m := manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	)

	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), m))
	consent := cfg.ConsentFor("resource-x")
	require.NotNil(t, consent)
	assert.False(t, consent.InheritablePreExisted, "first run configures the permissions itself")

	require.NoError(t, New(dir, cfg, zap.NewNop()).Run(context.Background(), m))
	consent = cfg.ConsentFor("resource-x")
	require.NotNil(t, consent)
	assert.True(t, consent.InheritablePreExisted, "rerun finds the permissions already in place")
	assert.Equal(t, models.InheritableConfigured, consent.Inheritable)
}

func TestFailureAtStepTwoLeavesStepOneApplied(t *testing.T) {
	dir := wiredDirectory()
	dir.failStep = "inheritable"
	cfg := testConfig()
	s := New(dir, cfg, zap.NewNop())

	err := s.Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	))
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindPermissionGrant))
	assert.Equal(t, StateOAuth2GrantApplied, s.State(), "step 1 stays applied, no rollback")

	// Step 1's grant is still there.
	assert.Contains(t, dir.grants, pairKey("sp-blueprint", "sp-resource-x"))
	// Step 3 never ran.
	assert.NotContains(t, dir.grants, pairKey("sp-agent", "sp-resource-x"))

	consent := cfg.ConsentFor("resource-x")
	require.NotNil(t, consent)
	assert.False(t, consent.Granted)
	assert.Equal(t, models.InheritableFailed, consent.Inheritable)
	assert.NotEmpty(t, consent.InheritableError)
}

func TestStepErrorNamesResourceAndStep(t *testing.T) {
	dir := wiredDirectory()
	dir.failStep = "create"
	s := New(dir, testConfig(), zap.NewNop())

	err := s.Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	))
	require.Error(t, err)

	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "OAuth2Grant", e.Context["step"])
	assert.Equal(t, "server-x", e.Context["resource"])
	assert.Contains(t, strings.Join(e.Mitigation, " "), "re-authenticate")
}

func TestMissingServicePrincipal(t *testing.T) {
	dir := newFakeDirectory()
	dir.addPrincipal("blueprint-app", "sp-blueprint")
	dir.addPrincipal("agent-app", "sp-agent")
	// resource-x principal deliberately absent.
	s := New(dir, testConfig(), zap.NewNop())

	err := s.Run(context.Background(), manifest(
		models.ToolServer{Name: "server-x", URL: "https://x", Scope: "S1", Audience: "resource-x"},
	))
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindPermissionGrant))
}

func TestMissingBlueprintIDIsValidationError(t *testing.T) {
	cfg := testConfig()
	cfg.Dynamic.BlueprintID = ""
	s := New(newFakeDirectory(), cfg, zap.NewNop())

	err := s.Run(context.Background(), manifest())
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))

	// The remediation points at the configuration fields that supply the
	// ids, not at the resource-provisioning phase.
	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, strings.Join(e.Mitigation, " "), "blueprintId")
	assert.NotContains(t, strings.Join(e.Mitigation, " "), "provisioning")
}
