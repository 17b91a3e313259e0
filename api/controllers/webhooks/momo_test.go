package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

type stubWebhookService struct {
	err      error
	payloads []momo.IPNPayload
}

func (s *stubWebhookService) HandleIPN(_ context.Context, payload momo.IPNPayload) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

func TestMoMoIPNAlwaysAcknowledges(t *testing.T) {
	svc := &stubWebhookService{}
	handler := MoMoIPN(svc, logger.New(logger.Options{ServiceName: "test"}))

	body := `{"orderId":"tok-1","requestId":"req-1","resultCode":0,"transId":987654,"amount":500000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Len(t, svc.payloads, 1)
	assert.Equal(t, "tok-1", svc.payloads[0].OrderID)
	assert.Equal(t, int64(987654), svc.payloads[0].TransID)
}

func TestMoMoIPNAcknowledgesMalformedBody(t *testing.T) {
	svc := &stubWebhookService{}
	handler := MoMoIPN(svc, logger.New(logger.Options{ServiceName: "test"}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo", strings.NewReader("not json"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code, "malformed deliveries are dropped, not bounced")
	assert.Empty(t, svc.payloads)
}

func TestMoMoIPNAcknowledgesProcessingFailure(t *testing.T) {
	svc := &stubWebhookService{err: assert.AnError}
	handler := MoMoIPN(svc, logger.New(logger.Options{ServiceName: "test"}))

	body := `{"orderId":"tok-1","resultCode":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/momo", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code, "a retry storm helps nobody")
}
