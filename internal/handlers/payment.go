package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/services"
)

type PaymentHandler struct {
	log            *logger.Logger
	paymentService services.PaymentService
}

func NewPaymentHandler(log *logger.Logger, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		log:            log.With("handler", "PaymentHandler"),
		paymentService: paymentService,
	}
}

// POST /api/payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req struct {
		ProjectID string `json:"project_id"`
		Amount    int64  `json:"amount"`
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	project, perr := h.paymentService.ConfirmPayment(c.Request.Context(), projectID, req.Amount, req.OrderID, req.PaymentID, req.Signature)
	if perr != nil {
		RespondAppError(c, perr)
		return
	}
	RespondOK(c, project)
}
