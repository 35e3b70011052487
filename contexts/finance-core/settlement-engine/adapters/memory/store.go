package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing tests and the in-memory module.
// It implements every settlement port on one struct. The nonces set plays
// the role of the database unique constraint that makes payments single-use.
type Store struct {
	mu sync.RWMutex

	nonces  map[string]struct{}
	votes   map[string]entities.ClipVote
	tips    map[string]entities.SeriesTip
	payouts map[string]entities.Payout
	refunds map[string]entities.Refund
	outbox  []outboxRecord

	config ports.SettlementConfig
	now    time.Time
}

type outboxRecord struct {
	Message   ports.OutboxMessage
	Published bool
}

func NewStore() *Store {
	return &Store{
		nonces:  make(map[string]struct{}),
		votes:   make(map[string]entities.ClipVote),
		tips:    make(map[string]entities.SeriesTip),
		payouts: make(map[string]entities.Payout),
		refunds: make(map[string]entities.Refund),
		config: ports.SettlementConfig{
			ProtocolVersion:   1,
			Scheme:            "exact",
			AllowedNetworks:   []string{"base", "base-sepolia"},
			PlatformAddress:   "0x00000000000000000000000000000000000000aa",
			PlatformWallet:    "0x00000000000000000000000000000000000000aa",
			CreatorPct:        69,
			PlatformPct:       30,
			AgentPct:          1,
			MaxValidityWindow: 5 * time.Minute,
			PayoutMaxRetries:  4,
			ClipVoteCents:     25,
		},
	}
}

func (s *Store) RecordClipVote(_ context.Context, vote entities.ClipVote, payouts []entities.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vote.VoteID == "" || vote.Nonce == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, consumed := s.nonces[vote.Nonce]; consumed {
		return domainerrors.ErrNonceReplayed
	}
	s.nonces[vote.Nonce] = struct{}{}
	s.votes[vote.VoteID] = vote
	for _, payout := range payouts {
		s.payouts[payout.PayoutID] = payout
	}
	return nil
}

func (s *Store) RecordSeriesTip(_ context.Context, tip entities.SeriesTip, payouts []entities.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tip.TipID == "" || tip.Nonce == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, consumed := s.nonces[tip.Nonce]; consumed {
		return domainerrors.ErrNonceReplayed
	}
	s.nonces[tip.Nonce] = struct{}{}
	s.tips[tip.TipID] = tip
	for _, payout := range payouts {
		s.payouts[payout.PayoutID] = payout
	}
	return nil
}

func (s *Store) GetClipVote(_ context.Context, voteID string) (entities.ClipVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vote, ok := s.votes[voteID]
	if !ok {
		return entities.ClipVote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) GetSeriesTip(_ context.Context, tipID string) (entities.SeriesTip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip, ok := s.tips[tipID]
	if !ok {
		return entities.SeriesTip{}, domainerrors.ErrTipNotFound
	}
	return tip, nil
}

func (s *Store) ListDuePayouts(_ context.Context, maxRetries int, limit int) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	due := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		switch payout.Status {
		case entities.PayoutStatusPending:
		case entities.PayoutStatusFailed:
			if payout.RetryCount > maxRetries {
				continue
			}
		default:
			continue
		}
		due = append(due, payout)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ClaimPayout(_ context.Context, payoutID string, from entities.PayoutStatus, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return false, domainerrors.ErrPayoutNotFound
	}
	if payout.Status != from {
		return false, nil
	}
	payout.Status = entities.PayoutStatusProcessing
	payout.UpdatedAt = now
	s.payouts[payoutID] = payout
	return true, nil
}

func (s *Store) MarkPayoutCompleted(_ context.Context, payoutID string, transferHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return domainerrors.ErrPayoutNotFound
	}
	payout.Status = entities.PayoutStatusCompleted
	payout.TransferHash = transferHash
	payout.LastError = ""
	payout.UpdatedAt = now
	s.payouts[payoutID] = payout
	return nil
}

func (s *Store) MarkPayoutFailed(_ context.Context, payoutID string, message string, now time.Time) (entities.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return entities.Payout{}, domainerrors.ErrPayoutNotFound
	}
	payout.Status = entities.PayoutStatusFailed
	payout.RetryCount++
	payout.LastError = message
	payout.UpdatedAt = now
	s.payouts[payoutID] = payout
	return payout, nil
}

func (s *Store) GetOpenRefundByNonce(_ context.Context, nonce string) (entities.Refund, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, refund := range s.refunds {
		if refund.Nonce == nonce && refund.Open() {
			return refund, true, nil
		}
	}
	return entities.Refund{}, false, nil
}

func (s *Store) CreateRefund(_ context.Context, refund entities.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refund.RefundID == "" || refund.Nonce == "" {
		return domainerrors.ErrInvalidInput
	}
	if (refund.ClipVoteID == nil) == (refund.SeriesTipID == nil) {
		return domainerrors.ErrInvalidInput
	}
	for _, existing := range s.refunds {
		if existing.Nonce == refund.Nonce {
			return domainerrors.ErrRefundExists
		}
	}
	s.refunds[refund.RefundID] = refund

	if refund.ClipVoteID != nil {
		if vote, ok := s.votes[*refund.ClipVoteID]; ok {
			vote.PaymentStatus = entities.PaymentStatusRefundPending
			vote.UpdatedAt = refund.CreatedAt
			s.votes[vote.VoteID] = vote
		}
	}
	if refund.SeriesTipID != nil {
		if tip, ok := s.tips[*refund.SeriesTipID]; ok {
			tip.PaymentStatus = entities.PaymentStatusRefundPending
			tip.UpdatedAt = refund.CreatedAt
			s.tips[tip.TipID] = tip
		}
	}
	return nil
}

func (s *Store) CountVotesByWork(_ context.Context, workID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, vote := range s.votes {
		if vote.WorkID == workID {
			count++
		}
	}
	return count, nil
}

func (s *Store) SettlementConfig(_ context.Context) (ports.SettlementConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     uuid.NewString(),
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.Published {
			continue
		}
		items = append(items, record.Message)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.outbox {
		if record.Message.OutboxID == outboxID {
			s.outbox[i].Published = true
			return nil
		}
	}
	return domainerrors.ErrInvalidInput
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// Test helpers.

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) SetConfig(cfg ports.SettlementConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Store) SeedPayout(payout entities.Payout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payouts[payout.PayoutID] = payout
}

func (s *Store) GetPayout(payoutID string) (entities.Payout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payout, ok := s.payouts[payoutID]
	return payout, ok
}

func (s *Store) PayoutsBySource(sourceID string) []entities.Payout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if payout.SourceID == sourceID {
			matched = append(matched, payout)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Recipient < matched[j].Recipient
	})
	return matched
}

func (s *Store) RefundCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refunds)
}

func (s *Store) RefundByNonce(nonce string) (entities.Refund, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, refund := range s.refunds {
		if refund.Nonce == nonce {
			return refund, true
		}
	}
	return entities.Refund{}, false
}

func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.outbox {
		if !record.Published {
			count++
		}
	}
	return count
}
