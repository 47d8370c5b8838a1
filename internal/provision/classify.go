package provision

import "strings"

// FailureClass buckets a resource-manager failure into one of the
// mitigation paths the operator can act on.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureQuotaExceeded
	FailureSkuNotAvailable
	FailureAuthorization
	FailureVerificationTimeout
	FailureNameTaken
)

func (c FailureClass) String() string {
	switch c {
	case FailureQuotaExceeded:
		return "QuotaExceeded"
	case FailureSkuNotAvailable:
		return "SkuNotAvailable"
	case FailureAuthorization:
		return "AuthorizationFailed"
	case FailureVerificationTimeout:
		return "VerificationTimeout"
	case FailureNameTaken:
		return "NameTaken"
	default:
		return "Other"
	}
}

// classify inspects resource-manager failure text. The markers match
// the ARM error codes and the az CLI's phrasing of them.
func classify(err error) FailureClass {
	if err == nil {
		return FailureOther
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "quotaexceeded") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "exceeding approved") && strings.Contains(msg, "quota"):
		return FailureQuotaExceeded

	case strings.Contains(msg, "skunotavailable") ||
		strings.Contains(msg, "sku is not available") ||
		strings.Contains(msg, "not available in region") ||
		strings.Contains(msg, "not available for subscription in this region"):
		return FailureSkuNotAvailable

	case strings.Contains(msg, "authorizationfailed") ||
		strings.Contains(msg, "does not have authorization") ||
		strings.Contains(msg, "forbidden"):
		return FailureAuthorization

	// Global web-app name uniqueness violation; surfaced distinctly
	// from the generic resource-failure path.
	case strings.Contains(msg, "already taken") ||
		strings.Contains(msg, "website with given name") && strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "conflict") && strings.Contains(msg, "hostname"):
		return FailureNameTaken

	default:
		return FailureOther
	}
}

// mitigationFor returns the ordered remediation steps for a class.
func mitigationFor(class FailureClass) []string {
	switch class {
	case FailureQuotaExceeded:
		return []string{
			"choose a smaller SKU or a different region",
			"or request a quota increase for this subscription",
		}
	case FailureSkuNotAvailable:
		return []string{
			"choose a different SKU or a different region; the requested combination is unsupported",
		}
	case FailureAuthorization:
		return []string{
			"ask a subscription administrator for Contributor or Owner rights on the resource group",
			"re-run the deployment once access is granted",
		}
	case FailureVerificationTimeout:
		return []string{
			"the resource was likely created but did not become visible in time",
			"re-run the deployment; existing resources are detected and skipped",
		}
	case FailureNameTaken:
		return []string{
			"choose another globally-unique web app name",
		}
	default:
		return []string{
			"inspect the underlying error and re-run the deployment",
		}
	}
}
