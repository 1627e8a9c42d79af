package purchase

import (
	"time"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
)

// Attempt records one purchase attempt and its flow progress. Attempts are
// created when the user opens the purchase flow and kept for audit after
// the flow completes or is dismissed.
type Attempt struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	RoundID   string `json:"round_id"`
	Quantity  int    `json:"quantity"`
	State     State  `json:"state"`
	LastError string `json:"last_error,omitempty"`

	ApproveTxHash  string                 `json:"approve_tx_hash,omitempty"`
	PurchaseTxHash string                 `json:"purchase_tx_hash,omitempty"`
	Tickets        []lottery.TicketNumber `json:"tickets,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
