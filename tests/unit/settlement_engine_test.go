package unit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	settlementengine "backlot/contexts/finance-core/settlement-engine"
	"backlot/contexts/finance-core/settlement-engine/application/workers"
	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"
	httptransport "backlot/contexts/finance-core/settlement-engine/transport/http"
)

const (
	testPlatformAddress = "0x00000000000000000000000000000000000000aa"
	testPayerAddress    = "0x00000000000000000000000000000000000000bb"
	testCreatorWallet   = "0x00000000000000000000000000000000000000cc"
	testAgentWallet     = "0x00000000000000000000000000000000000000dd"
	testNonce           = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type approvingFacilitator struct{}

func (approvingFacilitator) VerifySignature(_ context.Context, _ entities.PaymentAuthorization) (bool, error) {
	return true, nil
}

type failingTransfers struct{}

func (failingTransfers) Transfer(_ context.Context, _ string, _ int64, _ string) (string, error) {
	return "", errors.New("facilitator rpc unavailable")
}

type recordingTransfers struct{}

func (recordingTransfers) Transfer(_ context.Context, _ string, _ int64, reference string) (string, error) {
	return "0xhash-" + reference, nil
}

func clipVotePaymentHeader(t *testing.T, now time.Time, nonce string) string {
	t.Helper()
	raw, err := json.Marshal(httptransport.PaymentAuthorizationDTO{
		Version:     1,
		Scheme:      "exact",
		Network:     "base",
		PayTo:       testPlatformAddress,
		From:        testPayerAddress,
		Value:       "25",
		ValidAfter:  now.Add(-time.Minute).Unix(),
		ValidBefore: now.Add(2 * time.Minute).Unix(),
		Nonce:       nonce,
		Signature:   "0xsigned-by-payer",
	})
	if err != nil {
		t.Fatalf("marshaling payment header: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func clipVoteRequest() httptransport.ClipVoteRequest {
	return httptransport.ClipVoteRequest{
		SeriesID:      "series-1",
		CreatorWallet: testCreatorWallet,
		AgentWallet:   testAgentWallet,
	}
}

func TestClipVoteSettlesWithThreeWayPayout(t *testing.T) {
	module := settlementengine.NewInMemoryModule(approvingFacilitator{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	resp, rejected, err := module.Handler.RecordClipVoteHandler(ctx, "work-1",
		clipVotePaymentHeader(t, now, testNonce), clipVoteRequest())
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if rejected != nil {
		t.Fatalf("vote unexpectedly rejected: %s (%s)", rejected.Code, rejected.Reason)
	}
	if resp.Data.AmountCents != 25 {
		t.Fatalf("expected 25 cent clip vote, got %d", resp.Data.AmountCents)
	}

	payouts := module.Store.PayoutsBySource(resp.Data.VoteID)
	if len(payouts) != 3 {
		t.Fatalf("expected three payout legs, got %d", len(payouts))
	}
	byRecipient := map[entities.PayoutRecipient]entities.Payout{}
	total := int64(0)
	for _, payout := range payouts {
		byRecipient[payout.Recipient] = payout
		total += payout.AmountCents
		if payout.Status != entities.PayoutStatusPending {
			t.Fatalf("payout %s expected pending, got %q", payout.PayoutID, payout.Status)
		}
	}
	if total != 25 {
		t.Fatalf("payout legs must sum to the payment, got %d", total)
	}
	// floor(25*1%)=0 to agent, floor(25*30%)=7 to platform, remainder to creator.
	if byRecipient[entities.PayoutRecipientCreator].AmountCents != 18 ||
		byRecipient[entities.PayoutRecipientPlatform].AmountCents != 7 ||
		byRecipient[entities.PayoutRecipientAgent].AmountCents != 0 {
		t.Fatalf("unexpected split: creator=%d platform=%d agent=%d",
			byRecipient[entities.PayoutRecipientCreator].AmountCents,
			byRecipient[entities.PayoutRecipientPlatform].AmountCents,
			byRecipient[entities.PayoutRecipientAgent].AmountCents)
	}
	if byRecipient[entities.PayoutRecipientCreator].WalletAddress != testCreatorWallet {
		t.Fatalf("creator leg must target the creator wallet")
	}

	settled := 0
	messages, err := module.Store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("listing outbox failed: %v", err)
	}
	for _, message := range messages {
		if message.EventType == "settlement.payment.settled" {
			settled++
		}
	}
	if settled != 1 {
		t.Fatalf("expected one settlement.payment.settled event, got %d", settled)
	}
}

func TestClipVoteNonceReplayRejected(t *testing.T) {
	module := settlementengine.NewInMemoryModule(approvingFacilitator{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)
	header := clipVotePaymentHeader(t, now, testNonce)

	if _, rejected, err := module.Handler.RecordClipVoteHandler(ctx, "work-1", header, clipVoteRequest()); err != nil || rejected != nil {
		t.Fatalf("first vote must settle, got rejected=%v err=%v", rejected, err)
	}
	_, rejected, err := module.Handler.RecordClipVoteHandler(ctx, "work-1", header, clipVoteRequest())
	if err != nil {
		t.Fatalf("replay must reject, not error: %v", err)
	}
	if rejected == nil || rejected.Code != ports.RejectNonceReplayed {
		t.Fatalf("expected %s rejection, got %+v", ports.RejectNonceReplayed, rejected)
	}

	count, err := module.Handler.GetVoteCountHandler(ctx, "work-1")
	if err != nil {
		t.Fatalf("vote count failed: %v", err)
	}
	if count.Data.Count != 1 {
		t.Fatalf("replay must not persist a second vote, count=%d", count.Data.Count)
	}
}

func TestClipVoteFailsClosedWithoutCreatorWallet(t *testing.T) {
	module := settlementengine.NewInMemoryModule(approvingFacilitator{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	request := clipVoteRequest()
	request.CreatorWallet = ""
	_, _, err := module.Handler.RecordClipVoteHandler(ctx, "work-1",
		clipVotePaymentHeader(t, now, testNonce), request)
	if !errors.Is(err, domainerrors.ErrWalletNotConfigured) {
		t.Fatalf("expected wallet-not-configured error, got %v", err)
	}

	count, err := module.Handler.GetVoteCountHandler(ctx, "work-1")
	if err != nil {
		t.Fatalf("vote count failed: %v", err)
	}
	if count.Data.Count != 0 {
		t.Fatalf("failed settlement must persist nothing, count=%d", count.Data.Count)
	}
}

func TestPayoutExhaustionRefundsPayerOnce(t *testing.T) {
	module := settlementengine.NewInMemoryModule(approvingFacilitator{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	resp, rejected, err := module.Handler.RecordClipVoteHandler(ctx, "work-1",
		clipVotePaymentHeader(t, now, testNonce), clipVoteRequest())
	if err != nil || rejected != nil {
		t.Fatalf("vote must settle, got rejected=%v err=%v", rejected, err)
	}

	processor := workers.PayoutProcessor{
		Repo:      module.Store,
		Transfers: failingTransfers{},
		Config:    module.Store,
		Outbox:    module.Store,
		Clock:     module.Store,
		IDGen:     module.Store,
	}
	// Retry ceiling is 4, so the sixth cycle pushes every leg past it.
	for cycle := 0; cycle < 8; cycle++ {
		if err := processor.RunOnce(ctx); err != nil {
			t.Fatalf("payout cycle %d failed: %v", cycle, err)
		}
	}

	if got := module.Store.RefundCount(); got != 1 {
		t.Fatalf("expected exactly one refund for the payment, got %d", got)
	}
	refund, ok := module.Store.RefundByNonce(testNonce)
	if !ok {
		t.Fatal("refund must be keyed by the payment nonce")
	}
	if refund.PayerAddress != testPayerAddress || refund.AmountCents != 25 {
		t.Fatalf("refund must return the full payment to the payer, got %s/%d",
			refund.PayerAddress, refund.AmountCents)
	}

	vote, err := module.Store.GetClipVote(ctx, resp.Data.VoteID)
	if err != nil {
		t.Fatalf("loading vote failed: %v", err)
	}
	if vote.PaymentStatus != entities.PaymentStatusRefundPending {
		t.Fatalf("vote must move to refund_pending, got %q", vote.PaymentStatus)
	}

	refundEvents := 0
	messages, err := module.Store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("listing outbox failed: %v", err)
	}
	for _, message := range messages {
		if message.EventType == "settlement.refund.created" {
			refundEvents++
		}
	}
	if refundEvents != 1 {
		t.Fatalf("expected one settlement.refund.created event, got %d", refundEvents)
	}
}

func TestPayoutProcessorCompletesTransfers(t *testing.T) {
	module := settlementengine.NewInMemoryModule(approvingFacilitator{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	resp, rejected, err := module.Handler.RecordClipVoteHandler(ctx, "work-1",
		clipVotePaymentHeader(t, now, testNonce), clipVoteRequest())
	if err != nil || rejected != nil {
		t.Fatalf("vote must settle, got rejected=%v err=%v", rejected, err)
	}

	processor := workers.PayoutProcessor{
		Repo:      module.Store,
		Transfers: recordingTransfers{},
		Config:    module.Store,
		Outbox:    module.Store,
		Clock:     module.Store,
		IDGen:     module.Store,
	}
	if err := processor.RunOnce(ctx); err != nil {
		t.Fatalf("payout run failed: %v", err)
	}

	for _, payout := range module.Store.PayoutsBySource(resp.Data.VoteID) {
		if payout.Status != entities.PayoutStatusCompleted {
			t.Fatalf("payout %s expected completed, got %q", payout.PayoutID, payout.Status)
		}
		if payout.TransferHash == "" {
			t.Fatalf("payout %s missing transfer hash", payout.PayoutID)
		}
	}
	if module.Store.RefundCount() != 0 {
		t.Fatalf("successful payouts must not refund")
	}
}
