package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/polygonid/launchpad-identity/internal/buildinfo"
	"github.com/polygonid/launchpad-identity/internal/core/domain"
)

// GenericErrorMessage is the body of every error response
type GenericErrorMessage struct {
	Message string `json:"message"`
}

// HealthResponse is the body of /status
type HealthResponse struct {
	Status map[string]bool `json:"status"`
	Build  buildinfo.Info  `json:"build"`
}

// IdentityStatusResponse is the client view of a wallet identity
type IdentityStatusResponse struct {
	Wallet          string  `json:"wallet"`
	Phase           string  `json:"phase"`
	IdentityAddress *string `json:"identityAddress"`
	HasClaim        bool    `json:"hasClaim"`
	RequestPending  bool    `json:"requestPending"`
	KycStatus       string  `json:"kycStatus"`
	Error           *string `json:"error,omitempty"`
	UpdatedAt       string  `json:"updatedAt"`
}

// ClaimRequestResponse is the local state of a claim request
type ClaimRequestResponse struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Identity    string     `json:"identity"`
	Topic       uint64     `json:"topic"`
	TopicName   string     `json:"topicName"`
	Status      string     `json:"status"`
	RequestedAt *string    `json:"requestedAt,omitempty"`
	SettledAt   *string    `json:"settledAt,omitempty"`
}

func toIdentityStatusResponse(s domain.IdentityStatus) IdentityStatusResponse {
	resp := IdentityStatusResponse{
		Wallet:         s.Wallet.Hex(),
		Phase:          string(s.Phase),
		HasClaim:       s.HasClaim,
		RequestPending: s.RequestPending,
		KycStatus:      string(s.KycStatus),
		UpdatedAt:      s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.IdentityAddress != nil {
		resp.IdentityAddress = ToPointer(s.IdentityAddress.Hex())
	}
	if s.Error != "" {
		resp.Error = ToPointer(s.Error)
	}
	return resp
}

func toClaimRequestResponse(req *domain.ClaimRequest) ClaimRequestResponse {
	resp := ClaimRequestResponse{
		Identity:  req.Identity.Hex(),
		Topic:     uint64(req.Topic),
		TopicName: req.Topic.String(),
		Status:    string(req.Status),
	}
	if req.ID != uuid.Nil {
		resp.ID = ToPointer(req.ID)
	}
	if !req.RequestedAt.IsZero() {
		resp.RequestedAt = ToPointer(req.RequestedAt.UTC().Format(time.RFC3339))
	}
	if req.SettledAt != nil {
		resp.SettledAt = ToPointer(req.SettledAt.UTC().Format(time.RFC3339))
	}
	return resp
}

// ToPointer is a helper function to return a pointer to a value
func ToPointer[T any](t T) *T {
	return &t
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, GenericErrorMessage{Message: msg})
}
