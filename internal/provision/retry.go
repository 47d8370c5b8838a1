package provision

import (
	"errors"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// ShouldRetry is the retry predicate for provisioning steps. Quota,
// SKU, authorization, and name-collision failures are user-fixable and
// surface immediately. Verification timeouts also surface immediately;
// re-running is the recovery path because the idempotent existence
// check picks the resource up. Only unclassified failures retry.
func ShouldRetry(err error) bool {
	var e *errdefs.Error
	if errors.As(err, &e) && e.Kind == errdefs.KindResource {
		return e.Context["class"] == FailureOther.String()
	}
	switch errdefs.KindOf(err) {
	case errdefs.KindValidation, errdefs.KindBuild:
		return false
	default:
		return true
	}
}
