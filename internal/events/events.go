package events

// Domain event types emitted through the outbox. A downstream relay (push
// notifications, analytics) consumes them; none of the core flows read them
// back.
const (
	EventPurchaseConfirmed = "purchase.confirmed"
	EventPurchaseRejected  = "purchase.rejected"
	EventPegRedeemed       = "peg.redeemed"
	EventTokenExpired      = "token.expired"
	EventTokenCancelled    = "token.cancelled"
)

// PurchasePayload captures the minimal data for purchase lifecycle events.
type PurchasePayload struct {
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id"`
	VenueID    string `json:"venue_id"`
	TotalML    int64  `json:"total_ml,omitempty"`
}

func (p PurchasePayload) ToMap() map[string]any {
	payload := map[string]any{
		"purchase_id": p.PurchaseID,
		"user_id":     p.UserID,
		"venue_id":    p.VenueID,
	}
	if p.TotalML > 0 {
		payload["total_ml"] = p.TotalML
	}
	return payload
}

// RedemptionPayload captures the minimal data for token lifecycle events.
type RedemptionPayload struct {
	TokenID         string `json:"token_id"`
	PurchaseID      string `json:"purchase_id"`
	UserID          string `json:"user_id"`
	VenueID         string `json:"venue_id"`
	PegSizeML       int64  `json:"peg_size_ml,omitempty"`
	RemainingMLNow  int64  `json:"remaining_ml,omitempty"`
	RedeemedByStaff string `json:"redeemed_by_staff_id,omitempty"`
}

func (p RedemptionPayload) ToMap() map[string]any {
	payload := map[string]any{
		"token_id":    p.TokenID,
		"purchase_id": p.PurchaseID,
		"user_id":     p.UserID,
		"venue_id":    p.VenueID,
	}
	if p.PegSizeML > 0 {
		payload["peg_size_ml"] = p.PegSizeML
	}
	if p.RemainingMLNow >= 0 {
		payload["remaining_ml"] = p.RemainingMLNow
	}
	if p.RedeemedByStaff != "" {
		payload["redeemed_by_staff_id"] = p.RedeemedByStaff
	}
	return payload
}
