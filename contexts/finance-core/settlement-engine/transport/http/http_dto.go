package httptransport

import "time"

// PaymentAuthorizationDTO is the decoded X-PAYMENT header payload. Timestamps
// travel as unix seconds; the value is an integer string of cents.
type PaymentAuthorizationDTO struct {
	Version     int    `json:"version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	PayTo       string `json:"pay_to"`
	From        string `json:"from"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"valid_after"`
	ValidBefore int64  `json:"valid_before"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type ClipVoteRequest struct {
	SeriesID      string `json:"series_id"`
	CreatorWallet string `json:"creator_wallet"`
	AgentWallet   string `json:"agent_wallet"`
}

type SeriesTipRequest struct {
	CreatorWallet string `json:"creator_wallet"`
	AgentWallet   string `json:"agent_wallet"`
	AmountCents   int64  `json:"amount_cents"`
}

type ClipVoteDTO struct {
	VoteID      string    `json:"vote_id"`
	WorkID      string    `json:"work_id"`
	SeriesID    string    `json:"series_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type SeriesTipDTO struct {
	TipID       string    `json:"tip_id"`
	SeriesID    string    `json:"series_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type ClipVoteResponse struct {
	Status string      `json:"status"`
	Data   ClipVoteDTO `json:"data"`
}

type SeriesTipResponse struct {
	Status string       `json:"status"`
	Data   SeriesTipDTO `json:"data"`
}

// PaymentRejectedResponse is returned with 402 when verification fails. The
// reason is operator-facing and never echoes signature material.
type PaymentRejectedResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type VoteCountDTO struct {
	WorkID string `json:"work_id"`
	Count  int    `json:"count"`
}

type VoteCountResponse struct {
	Status string       `json:"status"`
	Data   VoteCountDTO `json:"data"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
