package system

import "context"

// Service is a lifecycle-managed component, such as the round refresher or
// the balance watcher. The manager starts and stops registered services in a
// deterministic order.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
