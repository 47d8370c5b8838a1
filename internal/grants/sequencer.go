// Package grants executes the ordered permission-grant chain against
// the identity directory. Steps commit independently; there is no
// cross-step rollback, and every step is idempotent so re-running the
// sequence is the recovery path.
package grants

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// State is the sequencer position. It only ever advances; a failure at
// step N leaves steps 1..N-1 applied.
type State int

const (
	StateIdle State = iota
	StateOAuth2GrantApplied
	StateInheritableConfigured
	StateAdminConsentGranted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateOAuth2GrantApplied:
		return "OAuth2GrantApplied"
	case StateInheritableConfigured:
		return "InheritablePermissionsConfigured"
	case StateAdminConsentGranted:
		return "AdminConsentGranted"
	case StateDone:
		return "Done"
	default:
		return "Idle"
	}
}

// Sequencer drives the grant chain for every resource application the
// tooling manifest names.
type Sequencer struct {
	dir    azure.IdentityDirectory
	cfg    *models.Configuration
	logger *zap.Logger
	state  State
	now    func() time.Time
}

func New(dir azure.IdentityDirectory, cfg *models.Configuration, logger *zap.Logger) *Sequencer {
	return &Sequencer{dir: dir, cfg: cfg, logger: logger, state: StateIdle, now: time.Now}
}

// State returns the last position the sequencer reached.
func (s *Sequencer) State() State { return s.state }

// Run applies the three-step chain for each resource application in the
// manifest: OAuth2 grant for the blueprint, inheritable permissions on
// the blueprint, then the admin-consent grant for the agent identity.
// Consent records in the dynamic configuration are updated as each
// resource completes.
func (s *Sequencer) Run(ctx context.Context, manifest *models.ToolingManifest) error {
	blueprintSP, err := s.servicePrincipal(ctx, s.cfg.Dynamic.BlueprintID, "blueprint")
	if err != nil {
		return err
	}
	agentSP, err := s.servicePrincipal(ctx, s.cfg.Dynamic.BotID, "agent identity")
	if err != nil {
		return err
	}

	order, groups := manifest.ServersByAudience()
	for _, audience := range order {
		servers := groups[audience]
		scopes := scopeSet(servers)
		name := servers[0].Name

		resourceSP, err := s.servicePrincipal(ctx, audience, name)
		if err != nil {
			return err
		}

		consent := models.ResourceConsent{
			ResourceName:  name,
			ResourceAppID: audience,
			Scopes:        scopes,
			Inheritable:   models.InheritableNotRequested,
		}

		// Step 1: OAuth2 grant, blueprint SP -> resource SP.
		if err := s.applyGrant(ctx, blueprintSP.ObjectID, resourceSP.ObjectID, scopes); err != nil {
			s.cfg.UpsertConsent(consent)
			return s.stepError("OAuth2Grant", name, err)
		}
		s.state = StateOAuth2GrantApplied

		// Step 2: inheritable permissions on the blueprint application.
		already, err := s.dir.ConfigureInheritablePermissions(ctx, s.cfg.Dynamic.BlueprintID, audience, scopes)
		if err != nil {
			consent.Inheritable = models.InheritableFailed
			consent.InheritableError = err.Error()
			s.cfg.UpsertConsent(consent)
			return s.stepError("InheritablePermissions", name, err)
		}
		consent.Inheritable = models.InheritableConfigured
		consent.InheritablePreExisted = already
		s.state = StateInheritableConfigured
		if already {
			s.logger.Info("inheritable permissions already configured",
				zap.String("resource", name))
		}

		// Step 3: admin-consent grant, agent identity SP -> resource SP.
		if err := s.applyGrant(ctx, agentSP.ObjectID, resourceSP.ObjectID, scopes); err != nil {
			s.cfg.UpsertConsent(consent)
			return s.stepError("AdminConsentGrant", name, err)
		}
		s.state = StateAdminConsentGranted

		grantedAt := s.now()
		consent.Granted = true
		consent.GrantedAt = &grantedAt
		s.cfg.UpsertConsent(consent)

		s.logger.Info("permission chain applied",
			zap.String("resource", name),
			zap.Strings("scopes", scopes))
	}

	s.state = StateDone
	return nil
}

// applyGrant creates or replaces the OAuth2 grant for a client/resource
// pair. Replace-not-duplicate: an existing grant gets its scope set
// overwritten so re-running converges to the same end state.
func (s *Sequencer) applyGrant(ctx context.Context, clientObjectID, resourceObjectID string, scopes []string) error {
	existing, err := s.dir.OAuth2Grants(ctx, clientObjectID, resourceObjectID)
	if err != nil {
		return err
	}
	scope := strings.Join(scopes, " ")

	if len(existing) == 0 {
		return s.dir.CreateOAuth2Grant(ctx, azure.OAuth2Grant{
			ClientID:    clientObjectID,
			ResourceID:  resourceObjectID,
			ConsentType: "AllPrincipals",
			Scope:       scope,
		})
	}
	return s.dir.UpdateOAuth2GrantScope(ctx, existing[0].ID, scope)
}

func (s *Sequencer) servicePrincipal(ctx context.Context, appID, what string) (*azure.ServicePrincipal, error) {
	if appID == "" {
		return nil, errdefs.New(errdefs.KindValidation, "grants.Run",
			"no application id recorded for "+what).
			WithMitigation("set dynamic.blueprintId and dynamic.botId in the configuration file to the application ids the grants apply to")
	}
	sp, err := s.dir.ServicePrincipalByAppID(ctx, appID)
	if err != nil {
		return nil, s.stepError("ServicePrincipalLookup", what, err)
	}
	if sp == nil {
		return nil, errdefs.New(errdefs.KindPermissionGrant, "grants.Run",
			"no service principal found for "+what).
			WithContext("appId", appID).
			WithMitigation(
				"verify the tenant in your configuration is the one the application was created in",
				"re-authenticate and re-run the permission phase",
			)
	}
	return sp, nil
}

// stepError names the resource and operation so operators can tell the
// permission phase apart from provisioning and build failures.
func (s *Sequencer) stepError(step, resource string, err error) error {
	return errdefs.Wrap(errdefs.KindPermissionGrant, "grants."+step,
		"permission step failed for "+resource, err).
		WithContext("step", step).
		WithContext("resource", resource).
		WithMitigation(
			"verify the tenant and re-authenticate (az login --tenant <tenant>)",
			"re-run the permission phase; completed steps are idempotent and converge",
		)
}

// scopeSet returns the union of the servers' scopes, deduplicated and
// sorted so repeated runs produce byte-identical grant payloads.
func scopeSet(servers []models.ToolServer) []string {
	seen := make(map[string]struct{})
	var scopes []string
	for _, server := range servers {
		for _, scope := range strings.Fields(server.Scope) {
			if _, ok := seen[scope]; ok {
				continue
			}
			seen[scope] = struct{}{}
			scopes = append(scopes, scope)
		}
	}
	sort.Strings(scopes)
	return scopes
}
