package events

import "github.com/hashicorp/go-hclog"

// AttachAuditLog writes every event on hub to logger at info level.
func AttachAuditLog(hub Hub, logger hclog.Logger) func() {
	return hub.Subscribe("*", func(e Event) {
		args := []any{"event_id", e.ID, "type", e.Type}
		for k, v := range e.Data {
			args = append(args, k, v)
		}
		logger.Info("audit", args...)
	})
}
