package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ResponseCodeSuccess is the only vnp_ResponseCode that means the capture
// settled. Everything else is a gateway-side failure or cancellation.
const ResponseCodeSuccess = "00"

var (
	errTMNCodeRequired    = errors.New("vnpay tmn code is required")
	errHashSecretRequired = errors.New("vnpay hash secret is required")
)

// Client verifies VNPay redirect-return parameters. The gateway captures the
// payment inside the payer's session; the signed return parameters are the
// proof of capture, so signature verification is the whole trust boundary.
type Client struct {
	tmnCode    string
	hashSecret string
}

// NewClient validates the merchant credentials.
func NewClient(tmnCode, hashSecret string) (*Client, error) {
	if strings.TrimSpace(tmnCode) == "" {
		return nil, errTMNCodeRequired
	}
	if strings.TrimSpace(hashSecret) == "" {
		return nil, errHashSecretRequired
	}
	return &Client{
		tmnCode:    strings.TrimSpace(tmnCode),
		hashSecret: strings.TrimSpace(hashSecret),
	}, nil
}

// ReturnParams is the verified subset of the redirect-return query string.
type ReturnParams struct {
	TxnRef        string
	TransactionNo string
	ResponseCode  string
	Amount        string
	BankCode      string
}

// VerifyReturn checks the vnp_SecureHash over the return query and extracts
// the typed parameters. It does not judge the response code; callers decide
// what a non-success capture means.
func (c *Client) VerifyReturn(query url.Values) (*ReturnParams, bool) {
	received := query.Get("vnp_SecureHash")
	if received == "" {
		return nil, false
	}
	if tmn := query.Get("vnp_TmnCode"); tmn != "" && tmn != c.tmnCode {
		return nil, false
	}

	expected := c.sign(hashData(query))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return nil, false
	}

	return &ReturnParams{
		TxnRef:        query.Get("vnp_TxnRef"),
		TransactionNo: query.Get("vnp_TransactionNo"),
		ResponseCode:  query.Get("vnp_ResponseCode"),
		Amount:        query.Get("vnp_Amount"),
		BankCode:      query.Get("vnp_BankCode"),
	}, true
}

// hashData rebuilds the canonical signing string: all vnp_ parameters except
// the hash fields, sorted by name, URL-encoded the way the gateway does.
func hashData(query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if !strings.HasPrefix(key, "vnp_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		value := query.Get(key)
		if value == "" {
			continue
		}
		pairs = append(pairs, key+"="+url.QueryEscape(value))
	}
	return strings.Join(pairs, "&")
}

func (c *Client) sign(raw string) string {
	mac := hmac.New(sha512.New, []byte(c.hashSecret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
