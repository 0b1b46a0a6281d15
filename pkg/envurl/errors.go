package envurl

import (
	"errors"

	awslib "github.com/eculver/environment-url/pkg/aws"
	"github.com/eculver/environment-url/pkg/environment"
	"github.com/eculver/environment-url/pkg/rstudio"
)

// Error classes reported by Classify.
const (
	ClassAccessDenied      = "access-denied"
	ClassNotFound          = "not-found"
	ClassHandshakeNetwork  = "handshake-network"
	ClassHandshakeProtocol = "handshake-protocol"
	ClassProviderAPI       = "provider-api"
	ClassInternal          = "internal"
)

// Classify names the failure class of an error returned by GetURL.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, environment.ErrAccessDenied):
		return ClassAccessDenied
	case errors.Is(err, environment.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, rstudio.ErrProtocol):
		return ClassHandshakeProtocol
	case errors.Is(err, rstudio.ErrNetwork):
		return ClassHandshakeNetwork
	case errors.Is(err, awslib.ErrProvider):
		return ClassProviderAPI
	default:
		return ClassInternal
	}
}
