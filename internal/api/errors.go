package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/log"
)

// errorStatus maps a service error to the http status sent to clients
func errorStatus(err error) int {
	var (
		cerr *domain.ConfigurationError
		perr *domain.ProvisioningError
		rerr *domain.ResolutionError
		verr *domain.VerificationError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidWallet), errors.Is(err, domain.ErrInvalidClaimTopic):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIdentityNotInitialized):
		return http.StatusConflict
	case errors.As(err, &cerr):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr):
		switch perr.Reason {
		case domain.ProvisioningNoCredential, domain.ProvisioningNotOwner:
			return http.StatusServiceUnavailable
		case domain.ProvisioningSaltCollision:
			return http.StatusConflict
		default:
			return http.StatusBadGateway
		}
	case errors.As(err, &rerr), errors.As(err, &verr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := errorStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", "err", err, "status", code)
	}
	writeMessage(w, code, err.Error())
}
