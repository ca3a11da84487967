package eventbus

import (
	"context"

	"github.com/annel0/gunpowder/internal/logging"
)

// StartLoggingListener подписывается на события типов types (все, если пусто)
// и пишет их в стандартный лог. Функция неблокирующая.
func StartLoggingListener(bus EventBus, types ...string) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{Types: types}, func(ctx context.Context, ev *Envelope) {
		logging.Debug("[EventBus] %s %s world=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Tenant, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на события активирована")
	return sub, nil
}
