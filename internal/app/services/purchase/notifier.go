package purchase

import (
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

// Notifier receives purchase flow outcomes. Deployments plug in webhooks or
// push channels; the default just logs.
type Notifier interface {
	ApproveSucceeded(attempt purchase.Attempt)
	PurchaseConfirmed(attempt purchase.Attempt)
	FlowFailed(attempt purchase.Attempt, err error)
}

// LogNotifier writes flow outcomes to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates the default notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("purchase-notify")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ApproveSucceeded(attempt purchase.Attempt) {
	n.log.WithFields(map[string]interface{}{
		"attempt_id": attempt.ID,
		"tx_hash":    attempt.ApproveTxHash,
	}).Info("spending approved")
}

func (n *LogNotifier) PurchaseConfirmed(attempt purchase.Attempt) {
	n.log.WithFields(map[string]interface{}{
		"attempt_id": attempt.ID,
		"round_id":   attempt.RoundID,
		"quantity":   attempt.Quantity,
		"tx_hash":    attempt.PurchaseTxHash,
	}).Info("tickets purchased")
}

func (n *LogNotifier) FlowFailed(attempt purchase.Attempt, err error) {
	n.log.WithError(err).WithFields(map[string]interface{}{
		"attempt_id": attempt.ID,
		"state":      string(attempt.State),
	}).Warn("purchase flow step failed")
}
