package httpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"backlot/contexts/finance-core/settlement-engine/application"
	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"
	httptransport "backlot/contexts/finance-core/settlement-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// DecodePaymentHeader decodes the base64 X-PAYMENT header into an
// authorization. A header that does not decode is an input error, not a
// verification failure, so the caller maps it to 400 rather than 402.
func DecodePaymentHeader(header string) (entities.PaymentAuthorization, error) {
	if header == "" {
		return entities.PaymentAuthorization{}, fmt.Errorf("%w: missing payment header", domainerrors.ErrInvalidInput)
	}
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return entities.PaymentAuthorization{}, fmt.Errorf("%w: payment header is not valid base64", domainerrors.ErrInvalidInput)
	}
	var dto httptransport.PaymentAuthorizationDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return entities.PaymentAuthorization{}, fmt.Errorf("%w: payment header is not valid JSON", domainerrors.ErrInvalidInput)
	}
	return entities.PaymentAuthorization{
		Version:     dto.Version,
		Scheme:      dto.Scheme,
		Network:     dto.Network,
		PayTo:       dto.PayTo,
		From:        dto.From,
		Value:       dto.Value,
		ValidAfter:  time.Unix(dto.ValidAfter, 0).UTC(),
		ValidBefore: time.Unix(dto.ValidBefore, 0).UTC(),
		Nonce:       dto.Nonce,
		Signature:   dto.Signature,
	}, nil
}

// RecordClipVoteHandler settles a paid vote on one produced clip. The third
// return value reports a rejected payment; the caller maps it to 402.
func (h Handler) RecordClipVoteHandler(ctx context.Context, workID string, paymentHeader string, request httptransport.ClipVoteRequest) (httptransport.ClipVoteResponse, *httptransport.PaymentRejectedResponse, error) {
	auth, err := DecodePaymentHeader(paymentHeader)
	if err != nil {
		return httptransport.ClipVoteResponse{}, nil, err
	}

	vote, result, err := h.Service.RecordClipVote(ctx, auth, ports.ClipVoteInput{
		WorkID:        workID,
		SeriesID:      request.SeriesID,
		CreatorWallet: request.CreatorWallet,
		AgentWallet:   request.AgentWallet,
	})
	if err != nil {
		return httptransport.ClipVoteResponse{}, nil, err
	}
	if !result.Valid {
		return httptransport.ClipVoteResponse{}, rejectedResponse(result), nil
	}

	return httptransport.ClipVoteResponse{
		Status: "success",
		Data: httptransport.ClipVoteDTO{
			VoteID:      vote.VoteID,
			WorkID:      vote.WorkID,
			SeriesID:    vote.SeriesID,
			AmountCents: vote.AmountCents,
			CreatedAt:   vote.CreatedAt,
		},
	}, nil, nil
}

func (h Handler) RecordSeriesTipHandler(ctx context.Context, seriesID string, paymentHeader string, request httptransport.SeriesTipRequest) (httptransport.SeriesTipResponse, *httptransport.PaymentRejectedResponse, error) {
	auth, err := DecodePaymentHeader(paymentHeader)
	if err != nil {
		return httptransport.SeriesTipResponse{}, nil, err
	}

	tip, result, err := h.Service.RecordSeriesTip(ctx, auth, ports.SeriesTipInput{
		SeriesID:      seriesID,
		CreatorWallet: request.CreatorWallet,
		AgentWallet:   request.AgentWallet,
		AmountCents:   request.AmountCents,
	})
	if err != nil {
		return httptransport.SeriesTipResponse{}, nil, err
	}
	if !result.Valid {
		return httptransport.SeriesTipResponse{}, rejectedResponse(result), nil
	}

	return httptransport.SeriesTipResponse{
		Status: "success",
		Data: httptransport.SeriesTipDTO{
			TipID:       tip.TipID,
			SeriesID:    tip.SeriesID,
			AmountCents: tip.AmountCents,
			CreatedAt:   tip.CreatedAt,
		},
	}, nil, nil
}

func (h Handler) GetVoteCountHandler(ctx context.Context, workID string) (httptransport.VoteCountResponse, error) {
	count, err := h.Service.VoteCount(ctx, workID)
	if err != nil {
		return httptransport.VoteCountResponse{}, err
	}
	return httptransport.VoteCountResponse{
		Status: "success",
		Data: httptransport.VoteCountDTO{
			WorkID: workID,
			Count:  count,
		},
	}, nil
}

func rejectedResponse(result ports.VerificationResult) *httptransport.PaymentRejectedResponse {
	return &httptransport.PaymentRejectedResponse{
		Status: "payment_rejected",
		Code:   result.Code,
		Reason: result.Reason,
	}
}
