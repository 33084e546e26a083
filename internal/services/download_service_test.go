package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/types"
)

func newDownloadFixture(t *testing.T, bucket BucketService, limit int) (DownloadService, *recordingNotifier, *testFixture) {
	t.Helper()
	f := newFixture(t)
	notifier := &recordingNotifier{}
	svc := NewDownloadService(f.db, f.log, f.projectRepo, f.revisionRepo, bucket, notifier, limit, time.Hour)
	return svc, notifier, f
}

func fullyPaidProject(t *testing.T, f *testFixture, owner *types.User) *types.Project {
	t.Helper()
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)
	if err := f.db.Model(project).Updates(map[string]interface{}{
		"payment_status": string(types.PaymentFullPaid),
	}).Error; err != nil {
		t.Fatalf("mark project paid: %v", err)
	}
	project.PaymentStatus = types.PaymentFullPaid
	return project
}

func TestRegisterDownloadCountsAndSignsURL(t *testing.T) {
	svc, _, f := newDownloadFixture(t, &stubBucket{}, 10)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	editor := seedUser(t, f.db, types.RoleEditor)
	project := fullyPaidProject(t, f, owner)
	rev := seedRevision(t, f.db, project.ID, editor.ID, 1)

	res, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
	if err != nil {
		t.Fatalf("RegisterDownload: %v", err)
	}
	if res.Count != 1 || res.Remaining != 9 {
		t.Fatalf("count/remaining: got %d/%d", res.Count, res.Remaining)
	}
	if !strings.HasPrefix(res.DownloadURL, "https://signed.example/") {
		t.Fatalf("download URL not signed: %q", res.DownloadURL)
	}
	if !strings.Contains(res.DownloadURL, "launch_teaser_v1.mp4") {
		t.Fatalf("attachment filename missing from URL: %q", res.DownloadURL)
	}
}

func TestRegisterDownloadPaymentGate(t *testing.T) {
	svc, _, f := newDownloadFixture(t, &stubBucket{}, 10)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	editor := seedUser(t, f.db, types.RoleEditor)
	outsider := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)
	rev := seedRevision(t, f.db, project.ID, editor.ID, 1)

	// Unpaid project blocks the owner.
	_, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("unpaid owner: want unauthorized, got %v", err)
	}

	// Guests never download.
	_, err = svc.RegisterDownload(ctx, project.ID, rev.ID, types.GuestIdentity("G", "g@example.com"))
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("guest: want unauthorized, got %v", err)
	}

	// Non-members are rejected before the payment check matters.
	_, err = svc.RegisterDownload(ctx, project.ID, rev.ID, outsider.Identity())
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("outsider: want unauthorized, got %v", err)
	}

	// Internal roles bypass the gate even while unpaid.
	if _, err := svc.RegisterDownload(ctx, project.ID, rev.ID, editor.Identity()); err != nil {
		t.Fatalf("internal bypass: %v", err)
	}
}

func TestRegisterDownloadEnforcesQuotaAndArchives(t *testing.T) {
	svc, notifier, f := newDownloadFixture(t, &stubBucket{}, 2)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	editor := seedUser(t, f.db, types.RoleEditor)
	project := fullyPaidProject(t, f, owner)
	rev := seedRevision(t, f.db, project.ID, editor.ID, 1)

	for i := 0; i < 2; i++ {
		if _, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity()); err != nil {
			t.Fatalf("download %d: %v", i+1, err)
		}
	}

	_, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
	if !apierr.HasCode(err, apierr.CodeLimitExceeded) {
		t.Fatalf("over quota: want limit_exceeded, got %v", err)
	}

	got := reloadRevision(t, f.db, rev.ID)
	if got.Status != types.RevisionArchived {
		t.Fatalf("revision not archived: %s", got.Status)
	}
	if !strings.Contains(got.Description, "download limit reached") {
		t.Fatalf("archive marker missing: %q", got.Description)
	}
	if got.DownloadCount != 2 {
		t.Fatalf("download count: want=2 got=%d", got.DownloadCount)
	}

	// Archived short-circuits before touching the counter.
	_, err = svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
	if !apierr.HasCode(err, apierr.CodeLimitExceeded) {
		t.Fatalf("archived revision: want limit_exceeded, got %v", err)
	}
	if notifier.archivedCount() != 1 {
		t.Fatalf("archived notifications: want=1 got=%d", notifier.archivedCount())
	}
}

func TestConcurrentDownloadsNeverExceedLimit(t *testing.T) {
	const limit = 5
	svc, notifier, f := newDownloadFixture(t, &stubBucket{}, limit)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	editor := seedUser(t, f.db, types.RoleEditor)
	project := fullyPaidProject(t, f, owner)
	rev := seedRevision(t, f.db, project.ID, editor.ID, 1)

	var mu sync.Mutex
	var counts []int
	var g errgroup.Group
	for i := 0; i < limit*2; i++ {
		g.Go(func() error {
			res, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
			if err == nil {
				mu.Lock()
				counts = append(counts, res.Count)
				mu.Unlock()
				return nil
			}
			if apierr.HasCode(err, apierr.CodeLimitExceeded) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent downloads: %v", err)
	}

	if len(counts) != limit {
		t.Fatalf("successful downloads: want=%d got=%d", limit, len(counts))
	}
	// Each winner must see its own increment, so the reported counts are a
	// permutation of 1..limit.
	sort.Ints(counts)
	for i, c := range counts {
		if c != i+1 {
			t.Fatalf("reported counts: want 1..%d, got %v", limit, counts)
		}
	}
	got := reloadRevision(t, f.db, rev.ID)
	if got.DownloadCount != limit {
		t.Fatalf("download count: want=%d got=%d", limit, got.DownloadCount)
	}
	if got.Status != types.RevisionArchived {
		t.Fatalf("revision should be archived after quota exhaustion")
	}
	if notifier.archivedCount() != 1 {
		t.Fatalf("archived notifications: want=1 got=%d", notifier.archivedCount())
	}
}

func TestRegisterDownloadFallsBackWhenSigningFails(t *testing.T) {
	svc, _, f := newDownloadFixture(t, &stubBucket{signErr: errors.New("signer offline")}, 10)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	editor := seedUser(t, f.db, types.RoleEditor)
	project := fullyPaidProject(t, f, owner)
	rev := seedRevision(t, f.db, project.ID, editor.ID, 1)

	res, err := svc.RegisterDownload(ctx, project.ID, rev.ID, owner.Identity())
	if err != nil {
		t.Fatalf("RegisterDownload: %v", err)
	}
	if res.DownloadURL != rev.VideoURL {
		t.Fatalf("fallback URL: want=%q got=%q", rev.VideoURL, res.DownloadURL)
	}
}

func TestRequestDownloadUnlockIsIdempotent(t *testing.T) {
	svc, notifier, f := newDownloadFixture(t, &stubBucket{}, 10)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)

	if err := svc.RequestDownloadUnlock(ctx, project.ID, owner.Identity()); err != nil {
		t.Fatalf("RequestDownloadUnlock: %v", err)
	}
	if err := svc.RequestDownloadUnlock(ctx, project.ID, owner.Identity()); err != nil {
		t.Fatalf("repeat RequestDownloadUnlock: %v", err)
	}

	got := reloadProject(t, f.db, project.ID)
	if !got.DownloadUnlockRequested {
		t.Fatalf("unlock request flag not set")
	}
	if len(notifier.unlockRequests) != 1 {
		t.Fatalf("unlock notifications: want=1 got=%d", len(notifier.unlockRequests))
	}

	err := svc.RequestDownloadUnlock(ctx, project.ID, types.GuestIdentity("G", "g@example.com"))
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("guest unlock request: want unauthorized, got %v", err)
	}
}

func TestUnlockProjectDownloads(t *testing.T) {
	svc, notifier, f := newDownloadFixture(t, &stubBucket{}, 10)
	ctx := context.Background()

	admin := seedUser(t, f.db, types.RoleAdmin)
	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)

	err := svc.UnlockProjectDownloads(ctx, project.ID, owner.Identity())
	if !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("owner unlock: want unauthorized, got %v", err)
	}

	if err := svc.UnlockProjectDownloads(ctx, project.ID, admin.Identity()); err != nil {
		t.Fatalf("UnlockProjectDownloads: %v", err)
	}

	got := reloadProject(t, f.db, project.ID)
	if got.Status != types.ProjectCompleted {
		t.Fatalf("status: want=%s got=%s", types.ProjectCompleted, got.Status)
	}
	if got.PaymentStatus != types.PaymentFullPaid || !got.DownloadsUnlocked || got.DownloadUnlockRequested {
		t.Fatalf("unlock fields: payment=%s unlocked=%v requested=%v", got.PaymentStatus, got.DownloadsUnlocked, got.DownloadUnlockRequested)
	}
	var notes []types.ProjectNote
	if err := json.Unmarshal(got.Notes, &notes); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	if len(notes) != 1 || notes[0].What != "downloads unlocked" {
		t.Fatalf("audit note: %+v", notes)
	}
	if notifier.completed != 1 {
		t.Fatalf("completed notifications: want=1 got=%d", notifier.completed)
	}
}

// A client who paid off-platform requests an unlock while the project is
// still pending_payment; the admin grant settles payment and completes the
// project in one step.
func TestUnlockProjectDownloadsBeforePayment(t *testing.T) {
	svc, notifier, f := newDownloadFixture(t, &stubBucket{}, 10)
	ctx := context.Background()

	admin := seedUser(t, f.db, types.RoleAdmin)
	owner := seedUser(t, f.db, types.RoleClient)
	project := seedProject(t, f.db, owner.ID, types.ProjectPendingPayment)

	if err := svc.RequestDownloadUnlock(ctx, project.ID, owner.Identity()); err != nil {
		t.Fatalf("RequestDownloadUnlock: %v", err)
	}
	if err := svc.UnlockProjectDownloads(ctx, project.ID, admin.Identity()); err != nil {
		t.Fatalf("UnlockProjectDownloads: %v", err)
	}

	got := reloadProject(t, f.db, project.ID)
	if got.Status != types.ProjectCompleted {
		t.Fatalf("status: want=%s got=%s", types.ProjectCompleted, got.Status)
	}
	if got.PaymentStatus != types.PaymentFullPaid || !got.DownloadsUnlocked || got.DownloadUnlockRequested {
		t.Fatalf("unlock fields: payment=%s unlocked=%v requested=%v", got.PaymentStatus, got.DownloadsUnlocked, got.DownloadUnlockRequested)
	}
	if notifier.completed != 1 {
		t.Fatalf("completed notifications: want=1 got=%d", notifier.completed)
	}
}
