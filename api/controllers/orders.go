package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftcv/craftcv-backend/api/middleware"
	"github.com/craftcv/craftcv-backend/api/responses"
	"github.com/craftcv/craftcv-backend/api/validators"
	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/pagination"
)

type createOrderRequest struct {
	ServiceCategory string          `json:"service_category" validate:"required"`
	Price           string          `json:"price" validate:"required"`
	Details         json.RawMessage `json:"details" validate:"required"`
}

// CreateOrder opens a new unpaid order for the authenticated customer.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseServiceCategory(body.ServiceCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service category"))
			return
		}
		price, err := decimal.NewFromString(body.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}

		view, err := svc.CreateOrder(r.Context(), orders.CreateOrderInput{
			OwnerID:         ownerID,
			ServiceCategory: category,
			Price:           price,
			Details:         body.Details,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// ListOrders pages through the customer's orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListOrders(r.Context(), ownerID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetOrder returns one order scoped by the full reference triple.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := orderRefFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetOrder(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ownerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return ownerID, nil
}

func orderRefFromRequest(r *http.Request) (orders.OrderRef, error) {
	ownerID, err := ownerFromContext(r)
	if err != nil {
		return orders.OrderRef{}, err
	}

	category, err := enums.ParseServiceCategory(strings.TrimSpace(chi.URLParam(r, "serviceCategory")))
	if err != nil {
		return orders.OrderRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service category")
	}

	rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if rawOrderID == "" {
		return orders.OrderRef{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return orders.OrderRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}

	return orders.OrderRef{
		ServiceCategory: category,
		OwnerID:         ownerID,
		OrderID:         orderID,
	}, nil
}
