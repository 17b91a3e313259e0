package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftcv/craftcv-backend/internal/payments"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/vnpay"
)

const (
	testTMNCode    = "TMN01"
	testHashSecret = "hash-secret"
)

type stubPaymentsService struct {
	payments.Service

	confirmErr   error
	confirmCalls []payments.ConfirmRedirectInput
}

func (s *stubPaymentsService) ConfirmRedirectCapture(_ context.Context, input payments.ConfirmRedirectInput) error {
	s.confirmCalls = append(s.confirmCalls, input)
	return s.confirmErr
}

func signedReturnURL(params map[string]string) string {
	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+url.QueryEscape(query.Get(key)))
	}

	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	query.Set("vnp_SecureHash", hex.EncodeToString(mac.Sum(nil)))
	return "/api/v1/payments/vnpay/return?" + query.Encode()
}

func newVNPayHandler(t *testing.T, svc payments.Service) http.HandlerFunc {
	t.Helper()

	client, err := vnpay.NewClient(testTMNCode, testHashSecret)
	require.NoError(t, err)
	return VNPayReturn(svc, client, logger.New(logger.Options{ServiceName: "test"}))
}

func TestVNPayReturnSettlesSignedCapture(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := newVNPayHandler(t, svc)

	ownerID := uuid.New()
	orderID := uuid.New()
	target := signedReturnURL(map[string]string{
		"vnp_TmnCode":       testTMNCode,
		"vnp_TxnRef":        fmt.Sprintf("resume:%s:%s", ownerID, orderID),
		"vnp_TransactionNo": "14226112",
		"vnp_ResponseCode":  "00",
		"vnp_Amount":        "50000000",
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"settled":true`)

	require.Len(t, svc.confirmCalls, 1)
	call := svc.confirmCalls[0]
	assert.Equal(t, enums.ServiceCategoryResume, call.Ref.ServiceCategory)
	assert.Equal(t, ownerID, call.Ref.OwnerID)
	assert.Equal(t, orderID, call.Ref.OrderID)
	assert.Equal(t, "14226112", call.TransactionNo)
}

func TestVNPayReturnRejectsBadSignature(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := newVNPayHandler(t, svc)

	target := signedReturnURL(map[string]string{
		"vnp_TmnCode":      testTMNCode,
		"vnp_TxnRef":       fmt.Sprintf("resume:%s:%s", uuid.New(), uuid.New()),
		"vnp_ResponseCode": "00",
	})
	// Tamper after signing.
	target = strings.Replace(target, "vnp_ResponseCode=00", "vnp_ResponseCode=01", 1)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.confirmCalls)
}

func TestVNPayReturnFailedCaptureIsNotSettled(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := newVNPayHandler(t, svc)

	target := signedReturnURL(map[string]string{
		"vnp_TmnCode":      testTMNCode,
		"vnp_TxnRef":       fmt.Sprintf("resume:%s:%s", uuid.New(), uuid.New()),
		"vnp_ResponseCode": "24",
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"settled":false`)
	assert.Empty(t, svc.confirmCalls, "cancelled captures must not finalize anything")
}

func TestVNPayReturnRejectsMalformedTxnRef(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := newVNPayHandler(t, svc)

	target := signedReturnURL(map[string]string{
		"vnp_TmnCode":      testTMNCode,
		"vnp_TxnRef":       "not-a-triple",
		"vnp_ResponseCode": "00",
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.confirmCalls)
}

func TestRefFromTxnRef(t *testing.T) {
	ownerID := uuid.New()
	orderID := uuid.New()

	ref, err := refFromTxnRef(fmt.Sprintf("cover_letter:%s:%s", ownerID, orderID))
	require.NoError(t, err)
	assert.Equal(t, enums.ServiceCategoryCoverLetter, ref.ServiceCategory)
	assert.Equal(t, ownerID, ref.OwnerID)
	assert.Equal(t, orderID, ref.OrderID)

	_, err = refFromTxnRef("resume:not-a-uuid:" + orderID.String())
	assert.Error(t, err)
}
