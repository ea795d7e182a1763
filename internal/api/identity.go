package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// GetStatus returns the current status of the wallet. The first call starts its initialization.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityStatusResponse(s.status.Status(r.Context(), wallet)))
}

// InitializeIdentity creates the identity of the wallet when it has none
func (s *Server) InitializeIdentity(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	status, err := s.status.InitializeIdentity(r.Context(), wallet)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityStatusResponse(status))
}

// RequestKyc asks the issuer for a KYC claim and starts polling for it
func (s *Server) RequestKyc(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	status, err := s.status.RequestKyc(r.Context(), wallet)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	code := http.StatusOK
	if status.RequestPending {
		code = http.StatusAccepted
	}
	writeJSON(w, code, toIdentityStatusResponse(status))
}

// RefreshStatus checks the KYC claim now
func (s *Server) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	status, err := s.status.RefreshStatus(r.Context(), wallet)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityStatusResponse(status))
}

// GetClaimRequest returns the local request state of a claim topic
func (s *Server) GetClaimRequest(w http.ResponseWriter, r *http.Request) {
	wallet, err := domain.ParseWallet(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	topic, err := domain.ParseClaimTopic(chi.URLParam(r, "topic"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	status, ok := s.status.Snapshot(r.Context(), wallet)
	if !ok || !status.Ready() {
		writeError(r.Context(), w, domain.ErrIdentityNotInitialized)
		return
	}
	req, err := s.verifier.RequestState(r.Context(), *status.IdentityAddress, topic)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimRequestResponse(req))
}
