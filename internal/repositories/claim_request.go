package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/polygonid/launchpad-identity/internal/core/domain"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/pkg/cache"
)

const (
	defaultTTL           = 24 * time.Hour
	claimRequestKeyspace = "claim_request"
)

// claimRequestDTO is the cached representation of a domain.ClaimRequest
type claimRequestDTO struct {
	ID          uuid.UUID  `json:"id"`
	Wallet      string     `json:"wallet"`
	Identity    string     `json:"identity"`
	Topic       uint64     `json:"topic"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
}

func (d claimRequestDTO) toDomain() *domain.ClaimRequest {
	return &domain.ClaimRequest{
		ID:          d.ID,
		Wallet:      common.HexToAddress(d.Wallet),
		Identity:    common.HexToAddress(d.Identity),
		Topic:       domain.ClaimTopic(d.Topic),
		Status:      domain.ClaimRequestStatus(d.Status),
		RequestedAt: d.RequestedAt,
		SettledAt:   d.SettledAt,
	}
}

type claimRequests struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewClaimRequestCached returns a claim request repository on top of a cache.
// Entries expire after ttl, a zero ttl uses one day.
func NewClaimRequestCached(c cache.Cache, ttl time.Duration) ports.ClaimRequestRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &claimRequests{cache: c, ttl: ttl}
}

// Save stores the request, replacing any previous one for the same identity and topic
func (r *claimRequests) Save(ctx context.Context, req *domain.ClaimRequest) error {
	dto := claimRequestDTO{
		ID:          req.ID,
		Wallet:      req.Wallet.Hex(),
		Identity:    req.Identity.Hex(),
		Topic:       uint64(req.Topic),
		Status:      string(req.Status),
		RequestedAt: req.RequestedAt,
		SettledAt:   req.SettledAt,
	}
	if err := r.cache.Set(ctx, claimRequestKey(req.Identity, req.Topic), dto, r.ttl); err != nil {
		return fmt.Errorf("saving claim request: %w", err)
	}
	return nil
}

// Get returns the stored request or domain.ErrClaimRequestNotFound
func (r *claimRequests) Get(ctx context.Context, identity common.Address, topic domain.ClaimTopic) (*domain.ClaimRequest, error) {
	var dto claimRequestDTO
	if found := r.cache.Get(ctx, claimRequestKey(identity, topic), &dto); !found {
		return nil, domain.ErrClaimRequestNotFound
	}
	return dto.toDomain(), nil
}

// Delete removes the request
func (r *claimRequests) Delete(ctx context.Context, identity common.Address, topic domain.ClaimTopic) error {
	return r.cache.Delete(ctx, claimRequestKey(identity, topic))
}

func claimRequestKey(identity common.Address, topic domain.ClaimTopic) string {
	return fmt.Sprintf("%s:%s:%d", claimRequestKeyspace, strings.ToLower(identity.Hex()), uint64(topic))
}
