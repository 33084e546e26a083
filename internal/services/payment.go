package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// GatewayVerifier checks a payment gateway's capture signature. Order
// creation and the gateway itself live outside this service; only the
// verified capture reaches the project.
type GatewayVerifier interface {
	VerifySignature(orderID, paymentID, signature string) error
}

type hmacVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) GatewayVerifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) VerifySignature(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("payment signature mismatch")
	}
	return nil
}

type PaymentService interface {
	// ConfirmPayment records a verified capture against the project,
	// deriving payment_status from the covered amount and moving a
	// pending_payment project into assignment.
	ConfirmPayment(ctx context.Context, projectID uuid.UUID, amount int64, orderID, paymentID, signature string) (*types.Project, error)
}

type paymentService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	verifier    GatewayVerifier
	notifier    ProjectNotifier
}

func NewPaymentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	verifier GatewayVerifier,
	notifier ProjectNotifier,
) PaymentService {
	serviceLog := baseLog.With("service", "PaymentService")
	return &paymentService{
		db:          db,
		log:         serviceLog,
		projectRepo: projectRepo,
		verifier:    verifier,
		notifier:    notifier,
	}
}

func (s *paymentService) ConfirmPayment(ctx context.Context, projectID uuid.UUID, amount int64, orderID, paymentID, signature string) (*types.Project, error) {
	if amount <= 0 {
		return nil, apierr.InvalidState("payment amount must be positive")
	}
	if err := s.verifier.VerifySignature(orderID, paymentID, signature); err != nil {
		return nil, apierr.Unauthorized("payment verification failed: %v", err)
	}

	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if project == nil {
		return nil, apierr.NotFound("project %s not found", projectID)
	}

	amountPaid := project.AmountPaid + amount
	paymentStatus := types.PaymentInitialPartial
	if amountPaid >= project.TotalCost {
		paymentStatus = types.PaymentFullPaid
	}

	updates := map[string]interface{}{
		"amount_paid":    amountPaid,
		"payment_status": string(paymentStatus),
	}

	newStatus := project.Status
	if project.Status == types.ProjectPendingPayment {
		next, tErr := transition(project.Status, eventInitialPayment)
		if tErr != nil {
			return nil, tErr
		}
		newStatus = next
		updates["status"] = string(newStatus)
	}

	notes, err := appendNote(project.Notes, types.ProjectNote{
		Who:  fmt.Sprintf("gateway:%s", paymentID),
		What: fmt.Sprintf("payment captured (%d)", amount),
		When: time.Now(),
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	updates["notes"] = notes

	if uErr := s.projectRepo.UpdateGuarded(ctx, nil, project, updates); uErr != nil {
		return nil, apierr.From(uErr)
	}

	project.AmountPaid = amountPaid
	project.PaymentStatus = paymentStatus
	project.Status = newStatus
	project.Notes = notes

	s.log.Info("Payment captured",
		"project_id", projectID,
		"amount", amount,
		"payment_status", paymentStatus,
	)
	s.notifier.PaymentCaptured(project, amount)
	return project, nil
}
