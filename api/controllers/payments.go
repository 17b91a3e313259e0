package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftcv/craftcv-backend/api/responses"
	"github.com/craftcv/craftcv-backend/api/validators"
	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/internal/payments"
	"github.com/craftcv/craftcv-backend/internal/reconcile"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/vnpay"
)

type initiatePaymentRequest struct {
	OrderInfo string `json:"order_info" validate:"max=200"`
	ExtraData string `json:"extra_data" validate:"max=500"`
}

// InitiateMoMoPayment opens a wallet push attempt for the referenced order and
// returns the pay URL.
func InitiateMoMoPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := orderRefFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body initiatePaymentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.InitiatePush(r.Context(), payments.InitiatePushInput{
			Ref:       ref,
			OrderInfo: body.OrderInfo,
			ExtraData: body.ExtraData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// GetPayment returns the current state of one payment attempt.
func GetPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment token is required"))
			return
		}

		view, err := svc.IntentStatus(r.Context(), token, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type reconcileResponse struct {
	Outcome string               `json:"outcome"`
	Payment *payments.StatusView `json:"payment"`
}

// ReconcilePayment runs the bounded poll loop for a pending attempt and
// returns whatever state the attempt ended in. An indeterminate outcome means
// the budget ran out with the gateway still reporting in-progress.
func ReconcilePayment(svc payments.Service, poller *reconcile.Poller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment token is required"))
			return
		}

		view, err := svc.IntentStatus(r.Context(), token, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if view.Status.IsTerminal() {
			responses.WriteSuccess(w, reconcileResponse{Outcome: view.Status.String(), Payment: view})
			return
		}

		outcome, err := poller.Poll(r.Context(), token)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Re-read so the response reflects whatever path won.
		view, err = svc.IntentStatus(r.Context(), token, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if view.Status.IsTerminal() {
			outcome = reconcile.Outcome(view.Status.String())
		}
		responses.WriteSuccess(w, reconcileResponse{Outcome: string(outcome), Payment: view})
	}
}

type vnpayReturnResponse struct {
	Settled      bool   `json:"settled"`
	ResponseCode string `json:"response_code"`
}

// VNPayReturn handles the redirect provider's signed return. The capture
// happened inside the payer's session; the signature over the query string is
// the proof. TxnRef carries the order reference as
// serviceCategory:ownerID:orderID.
func VNPayReturn(svc payments.Service, client *vnpay.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := client.VerifyReturn(r.URL.Query())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid return signature"))
			return
		}

		if params.ResponseCode != vnpay.ResponseCodeSuccess {
			responses.WriteSuccess(w, vnpayReturnResponse{Settled: false, ResponseCode: params.ResponseCode})
			return
		}

		ref, err := refFromTxnRef(params.TxnRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ConfirmRedirectCapture(r.Context(), payments.ConfirmRedirectInput{
			Ref:           ref,
			TransactionNo: params.TransactionNo,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vnpayReturnResponse{Settled: true, ResponseCode: params.ResponseCode})
	}
}

func refFromTxnRef(txnRef string) (orders.OrderRef, error) {
	parts := strings.Split(strings.TrimSpace(txnRef), ":")
	if len(parts) != 3 {
		return orders.OrderRef{}, pkgerrors.New(pkgerrors.CodeValidation, "malformed transaction reference")
	}
	category, err := enums.ParseServiceCategory(parts[0])
	if err != nil {
		return orders.OrderRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed transaction reference")
	}
	ownerID, err := uuid.Parse(parts[1])
	if err != nil {
		return orders.OrderRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed transaction reference")
	}
	orderID, err := uuid.Parse(parts[2])
	if err != nil {
		return orders.OrderRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed transaction reference")
	}
	return orders.OrderRef{ServiceCategory: category, OwnerID: ownerID, OrderID: orderID}, nil
}
