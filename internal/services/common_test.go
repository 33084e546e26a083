package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

func testDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to access sql db: %v", err)
	}
	// sqlite serializes writers; a single connection keeps concurrent test
	// goroutines from tripping over "database is locked".
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&types.User{},
		&types.Project{},
		&types.ProjectMember{},
		&types.Revision{},
		&types.Comment{},
		&types.CommentReply{},
	); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

type testFixture struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	projectRepo  repos.ProjectRepo
	revisionRepo repos.RevisionRepo
	commentRepo  repos.CommentRepo
}

func newFixture(tb testing.TB) *testFixture {
	tb.Helper()
	db := testDB(tb)
	log := testLogger(tb)
	return &testFixture{
		db:           db,
		log:          log,
		userRepo:     repos.NewUserRepo(db, log),
		projectRepo:  repos.NewProjectRepo(db, log),
		revisionRepo: repos.NewRevisionRepo(db, log),
		commentRepo:  repos.NewCommentRepo(db, log),
	}
}

func seedUser(tb testing.TB, db *gorm.DB, role types.UserRole) *types.User {
	tb.Helper()
	u := &types.User{
		Name:     "Test " + string(role),
		Email:    fmt.Sprintf("%s-%s@example.com", role, uuid.New()),
		Password: "pw",
		Role:     role,
	}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProject(tb testing.TB, db *gorm.DB, ownerID uuid.UUID, status types.ProjectStatus) *types.Project {
	tb.Helper()
	p := &types.Project{
		OwnerID:       ownerID,
		Name:          "Launch Teaser",
		Status:        status,
		PaymentStatus: types.PaymentPending,
		TotalCost:     2000,
	}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	if err := db.Create(&types.ProjectMember{ProjectID: p.ID, UserID: ownerID}).Error; err != nil {
		tb.Fatalf("seed project member: %v", err)
	}
	return p
}

func seedRevision(tb testing.TB, db *gorm.DB, projectID, uploaderID uuid.UUID, version int) *types.Revision {
	tb.Helper()
	rev := &types.Revision{
		ProjectID:  projectID,
		Version:    version,
		VideoURL:   fmt.Sprintf("https://storage.googleapis.com/reelpost/videos/%s/v%d.mp4", projectID, version),
		Status:     types.RevisionActive,
		UploadedBy: uploaderID,
	}
	if err := db.Create(rev).Error; err != nil {
		tb.Fatalf("seed revision: %v", err)
	}
	return rev
}

// stubBucket stands in for GCS. Keys are recovered from a fixed fake
// prefix and signed URLs are deterministic.
type stubBucket struct {
	signErr error
}

const stubBucketPrefix = "https://storage.googleapis.com/reelpost/"

func (b *stubBucket) UploadFile(ctx context.Context, key string, file io.Reader) error { return nil }

func (b *stubBucket) DeleteFile(ctx context.Context, key string) error { return nil }

func (b *stubBucket) GetPublicURL(key string) string { return stubBucketPrefix + key }

func (b *stubBucket) ObjectKeyFromURL(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, stubBucketPrefix) {
		return strings.TrimPrefix(rawURL, stubBucketPrefix), true
	}
	return "", false
}

func (b *stubBucket) SignedDownloadURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return fmt.Sprintf("https://signed.example/%s?filename=%s", key, filename), nil
}

// recordingNotifier captures every notification for assertions.
type recordingNotifier struct {
	mu sync.Mutex

	offered        int
	responded      []types.AssignmentStatus
	uploaded       []uuid.UUID
	archived       []uuid.UUID
	comments       []string
	replies        int
	resolved       []types.CommentStatus
	unlockRequests []string
	completed      int
	payments       []int64
}

func (n *recordingNotifier) AssignmentOffered(project *types.Project, editorID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offered++
}

func (n *recordingNotifier) AssignmentResponded(project *types.Project, decision types.AssignmentStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.responded = append(n.responded, decision)
}

func (n *recordingNotifier) RevisionUploaded(project *types.Project, revision *types.Revision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uploaded = append(n.uploaded, revision.ID)
}

func (n *recordingNotifier) RevisionArchived(projectID, revisionID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.archived = append(n.archived, revisionID)
}

func (n *recordingNotifier) CommentAdded(comment *types.Comment, provisionalID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.comments = append(n.comments, provisionalID)
}

func (n *recordingNotifier) ReplyAdded(comment *types.Comment, reply *types.CommentReply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies++
}

func (n *recordingNotifier) CommentResolved(comment *types.Comment, status types.CommentStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, status)
}

func (n *recordingNotifier) UnlockRequested(project *types.Project, requesterKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unlockRequests = append(n.unlockRequests, requesterKey)
}

func (n *recordingNotifier) ProjectCompleted(project *types.Project) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *recordingNotifier) PaymentCaptured(project *types.Project, amount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, amount)
}

func (n *recordingNotifier) archivedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.archived)
}

func reloadProject(tb testing.TB, db *gorm.DB, projectID uuid.UUID) *types.Project {
	tb.Helper()
	var p types.Project
	if err := db.Where("id = ?", projectID).First(&p).Error; err != nil {
		tb.Fatalf("reload project: %v", err)
	}
	return &p
}

func reloadRevision(tb testing.TB, db *gorm.DB, revisionID uuid.UUID) *types.Revision {
	tb.Helper()
	var rev types.Revision
	if err := db.Where("id = ?", revisionID).First(&rev).Error; err != nil {
		tb.Fatalf("reload revision: %v", err)
	}
	return &rev
}

var _ BucketService = (*stubBucket)(nil)
var _ ProjectNotifier = (*recordingNotifier)(nil)

func mustMember(tb testing.TB, db *gorm.DB, projectRepo repos.ProjectRepo, projectID, userID uuid.UUID, want bool) {
	tb.Helper()
	got, err := projectRepo.IsMember(context.Background(), nil, projectID, userID)
	if err != nil {
		tb.Fatalf("IsMember: %v", err)
	}
	if got != want {
		tb.Fatalf("membership of %s: want=%v got=%v", userID, want, got)
	}
}
