package steps

import (
	"strings"

	"github.com/haven-hvn/haven/pkg/pipeline"
)

var permanentPatterns = []string{
	"unauthorized",
	"forbidden",
	"401",
	"403",
	"404",
	"bad request",
	"invalid",
	"not found",
	"not configured",
	"missing",
	"private key",
}

var transientPatterns = []string{
	"timeout",
	"connection",
	"network",
	"rate limit",
	"too many requests",
	"502",
	"503",
	"504",
	"temporar",
	"unavailable",
}

// categorize maps an external-service error to an ErrorCategory by message
// pattern, mirroring how the remote services actually fail
func categorize(err error) pipeline.ErrorCategory {
	msg := strings.ToLower(err.Error())

	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return pipeline.CategoryPermanent
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return pipeline.CategoryTransient
		}
	}
	return pipeline.CategoryUnknown
}
