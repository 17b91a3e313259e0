package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/craftcv/craftcv-backend/pkg/config"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
)

const (
	createPath = "/v2/gateway/api/create"
	queryPath  = "/v2/gateway/api/query"

	requestTypeWallet = "captureWallet"
	defaultLang       = "vi"
)

// Result codes the gateway reports. Zero is the only success; the in-progress
// codes mean the payer has not finished yet and must not be treated as
// terminal.
const (
	ResultCodeSuccess       = 0
	ResultCodeWaitingUser   = 1000
	ResultCodeProcessing    = 7000
	ResultCodeProviderSide  = 7002
	ResultCodeAuthorized    = 9000
	ResultCodeUserCancelled = 1006
)

var (
	errPartnerCodeRequired = errors.New("momo partner code is required")
	errAccessKeyRequired   = errors.New("momo access key is required")
	errSecretKeyRequired   = errors.New("momo secret key is required")
	errLoggerRequired      = errors.New("momo logger is required")
)

// Client talks to the MoMo payment gateway with centralized signing, logging,
// and error mapping. Authorization calls carry a bounded timeout and are never
// retried; retrying a create risks double initiation.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	partnerCode string
	accessKey   string
	secretKey   string
	ipnURL      string
	redirectURL string
	logger      *logger.Logger
}

// NewClient initializes the MoMo wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MoMoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.PartnerCode) == "" {
		return nil, errPartnerCodeRequired
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, errAccessKeyRequired
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errSecretKeyRequired
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		partnerCode: strings.TrimSpace(cfg.PartnerCode),
		accessKey:   strings.TrimSpace(cfg.AccessKey),
		secretKey:   strings.TrimSpace(cfg.SecretKey),
		ipnURL:      cfg.IPNURL,
		redirectURL: cfg.RedirectURL,
		logger:      logg,
	}

	logg.Info(ctx, "momo client initialized")
	return c, nil
}

// CreatePaymentParams carries one payment authorization request. Token doubles
// as the gateway orderId and requestId; it must be unique per attempt.
type CreatePaymentParams struct {
	Token     string
	Amount    int64
	OrderInfo string
	ExtraData string
}

// CreatePaymentResult is the accepted authorization.
type CreatePaymentResult struct {
	PayURL    string
	Deeplink  string
	QRCodeURL string
}

// QueryResult is the gateway's answer to a status query.
type QueryResult struct {
	ResultCode int
	Message    string
	TransID    int64
	Amount     int64
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

type queryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type queryResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	TransID    int64  `json:"transId"`
	Amount     int64  `json:"amount"`
}

// CreatePayment authorizes a payment and returns the pay URL the payer is sent
// to. A non-zero result code is a provider rejection, not a transport failure.
func (c *Client) CreatePayment(ctx context.Context, params CreatePaymentParams) (*CreatePaymentResult, error) {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		c.accessKey, params.Amount, params.ExtraData, c.ipnURL, params.Token,
		params.OrderInfo, c.partnerCode, c.redirectURL, params.Token, requestTypeWallet,
	)

	req := createRequest{
		PartnerCode: c.partnerCode,
		RequestID:   params.Token,
		Amount:      params.Amount,
		OrderID:     params.Token,
		OrderInfo:   params.OrderInfo,
		RedirectURL: c.redirectURL,
		IPNURL:      c.ipnURL,
		RequestType: requestTypeWallet,
		ExtraData:   params.ExtraData,
		Lang:        defaultLang,
		Signature:   c.sign(raw),
	}

	c.log(ctx, "request", "create_payment", map[string]any{
		"token":  params.Token,
		"amount": params.Amount,
	})

	var resp createResponse
	if err := c.post(ctx, createPath, req, &resp); err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	if resp.ResultCode != ResultCodeSuccess {
		c.log(ctx, "rejected", "create_payment", map[string]any{
			"result_code": resp.ResultCode,
			"message":     resp.Message,
		})
		return nil, pkgerrors.New(pkgerrors.CodeProviderRejected, "momo rejected the payment request").
			WithDetails(map[string]any{"result_code": resp.ResultCode, "message": resp.Message})
	}

	c.log(ctx, "response", "create_payment", map[string]any{"token": params.Token})
	return &CreatePaymentResult{
		PayURL:    resp.PayURL,
		Deeplink:  resp.Deeplink,
		QRCodeURL: resp.QRCodeURL,
	}, nil
}

// QueryStatus asks the gateway for the current state of a payment. The call is
// a pure read and safe to repeat.
func (c *Client) QueryStatus(ctx context.Context, token string) (*QueryResult, error) {
	raw := fmt.Sprintf(
		"accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		c.accessKey, token, c.partnerCode, token,
	)

	req := queryRequest{
		PartnerCode: c.partnerCode,
		RequestID:   token,
		OrderID:     token,
		Lang:        defaultLang,
		Signature:   c.sign(raw),
	}

	var resp queryResponse
	if err := c.post(ctx, queryPath, req, &resp); err != nil {
		return nil, err
	}

	return &QueryResult{
		ResultCode: resp.ResultCode,
		Message:    resp.Message,
		TransID:    resp.TransID,
		Amount:     resp.Amount,
	}, nil
}

// IPNPayload is the push notification MoMo delivers after the payer finishes.
type IPNPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// VerifyIPNSignature recomputes the notification signature and compares it in
// constant time.
func (c *Client) VerifyIPNSignature(payload IPNPayload) bool {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		c.accessKey, payload.Amount, payload.ExtraData, payload.Message,
		payload.OrderID, payload.OrderInfo, payload.OrderType, payload.PartnerCode,
		payload.PayType, payload.RequestID, payload.ResponseTime, payload.ResultCode,
		payload.TransID,
	)
	return hmac.Equal([]byte(c.sign(raw)), []byte(payload.Signature))
}

// IsTerminal reports whether the result code allows no further change.
func IsTerminal(resultCode int) bool {
	return !IsPending(resultCode)
}

// IsSuccess reports whether the result code means the payment settled.
func IsSuccess(resultCode int) bool {
	return resultCode == ResultCodeSuccess
}

// IsPending reports whether the payer is still mid-flow.
func IsPending(resultCode int) bool {
	switch resultCode {
	case ResultCodeWaitingUser, ResultCodeProcessing, ResultCodeProviderSide, ResultCodeAuthorized:
		return true
	}
	return false
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode momo request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build momo request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call momo gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("momo gateway returned %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode momo response")
	}
	return nil
}

func (c *Client) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"provider": "momo", "phase": phase, "operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	ctx = c.logger.WithFields(ctx, merged)
	c.logger.Info(ctx, "momo."+operation)
}
