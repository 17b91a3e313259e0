package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

type MoMoWebhookService interface {
	HandleIPN(ctx context.Context, payload momo.IPNPayload) error
}

// MoMoIPN receives gateway push notifications. The gateway retries on
// anything but 204, and a retry storm helps nobody, so every well-formed or
// malformed delivery is acknowledged. Processing failures are logged and left
// to the retry or the poller to resolve.
func MoMoIPN(svc MoMoWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload momo.IPNPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			if logg != nil {
				logg.Warn(ctx, "undecodable momo notification dropped")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := svc.HandleIPN(ctx, payload); err != nil && logg != nil {
			logg.Error(ctx, "momo notification processing failed", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
