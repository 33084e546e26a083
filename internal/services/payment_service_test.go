package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/types"
)

const testPaymentSecret = "webhook-secret"

func signCapture(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testPaymentSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func newPaymentFixture(t *testing.T) (PaymentService, *recordingNotifier, *testFixture) {
	t.Helper()
	f := newFixture(t)
	notifier := &recordingNotifier{}
	svc := NewPaymentService(f.db, f.log, f.projectRepo, NewHMACVerifier(testPaymentSecret), notifier)
	return svc, notifier, f
}

func TestConfirmPaymentPartialThenFull(t *testing.T) {
	svc, notifier, f := newPaymentFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectPendingPayment)

	got, err := svc.ConfirmPayment(ctx, project.ID, 500, "order-1", "pay-1", signCapture("order-1", "pay-1"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if got.PaymentStatus != types.PaymentInitialPartial {
		t.Fatalf("payment status: want=%s got=%s", types.PaymentInitialPartial, got.PaymentStatus)
	}
	if got.Status != types.ProjectPendingAssignment {
		t.Fatalf("project status: want=%s got=%s", types.ProjectPendingAssignment, got.Status)
	}
	if got.AmountPaid != 500 {
		t.Fatalf("amount paid: want=500 got=%d", got.AmountPaid)
	}

	got, err = svc.ConfirmPayment(ctx, project.ID, 1500, "order-2", "pay-2", signCapture("order-2", "pay-2"))
	if err != nil {
		t.Fatalf("second ConfirmPayment: %v", err)
	}
	if got.PaymentStatus != types.PaymentFullPaid {
		t.Fatalf("payment status after full cover: %s", got.PaymentStatus)
	}
	if got.AmountPaid != 2000 {
		t.Fatalf("amount paid: want=2000 got=%d", got.AmountPaid)
	}
	// Full payment opens the download gate.
	if !got.DownloadsPermitted() {
		t.Fatalf("downloads should be permitted once fully paid")
	}

	var notes []types.ProjectNote
	if err := json.Unmarshal(got.Notes, &notes); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("audit notes: want=2 got=%d", len(notes))
	}
	if len(notifier.payments) != 2 {
		t.Fatalf("payment notifications: want=2 got=%d", len(notifier.payments))
	}
}

func TestConfirmPaymentRejectsBadSignature(t *testing.T) {
	svc, _, f := newPaymentFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectPendingPayment)

	_, err := svc.ConfirmPayment(ctx, project.ID, 500, "order-1", "pay-1", "forged")
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("forged signature: want unauthorized, got %v", err)
	}

	got := reloadProject(t, f.db, project.ID)
	if got.AmountPaid != 0 || got.Status != types.ProjectPendingPayment {
		t.Fatalf("project mutated despite forged signature: %+v", got)
	}
}

func TestConfirmPaymentValidation(t *testing.T) {
	svc, _, f := newPaymentFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectPendingPayment)

	_, err := svc.ConfirmPayment(ctx, project.ID, 0, "order-1", "pay-1", signCapture("order-1", "pay-1"))
	if !apierr.HasCode(err, apierr.CodeInvalidState) {
		t.Fatalf("zero amount: want invalid_state, got %v", err)
	}

	_, err = svc.ConfirmPayment(ctx, uuid.New(), 500, "order-1", "pay-1", signCapture("order-1", "pay-1"))
	if !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("unknown project: want not_found, got %v", err)
	}
}

func TestConfirmPaymentKeepsLaterStatuses(t *testing.T) {
	svc, _, f := newPaymentFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)

	got, err := svc.ConfirmPayment(ctx, project.ID, 2000, "order-1", "pay-1", signCapture("order-1", "pay-1"))
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	// A capture on an already active project settles payment without
	// touching the lifecycle.
	if got.Status != types.ProjectActive {
		t.Fatalf("project status: want=%s got=%s", types.ProjectActive, got.Status)
	}
	if got.PaymentStatus != types.PaymentFullPaid {
		t.Fatalf("payment status: %s", got.PaymentStatus)
	}
}
