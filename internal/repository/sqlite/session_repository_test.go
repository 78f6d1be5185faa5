package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/repository/sqlite"
	"github.com/bioshelf/bioshelf/internal/testutil"
)

var sessionSeq int

// newTestSession inserts an active session. temp_path carries a UNIQUE
// constraint, so every session gets its own path.
func newTestSession(t *testing.T, repos *repository.Repositories, user *models.User, totalSize int64) *models.UploadSession {
	t.Helper()

	sessionSeq++
	session := &models.UploadSession{
		SessionID:        fmt.Sprintf("testsession%04d", sessionSeq),
		UserID:           user.ID,
		OriginalFilename: "reads.fastq",
		TotalSize:        totalSize,
		ChunkSize:        1024,
		TempPath:         fmt.Sprintf("/tmp/upload-%04d.tmp", sessionSeq),
		Status:           models.SessionActive,
	}
	if err := repos.Sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	session := newTestSession(t, repos, user, 4096)
	if session.ID == 0 {
		t.Fatal("expected session ID to be set after create")
	}
	if session.CreatedAt.IsZero() || session.LastActivity.IsZero() {
		t.Fatal("expected timestamps to be populated on create")
	}

	got, err := repos.Sessions.GetBySessionID(ctx, session.SessionID, user.ID)
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.TotalSize != 4096 || got.Status != models.SessionActive {
		t.Errorf("unexpected session: total=%d status=%q", got.TotalSize, got.Status)
	}
	if got.UploadedSize != 0 {
		t.Errorf("expected zero uploaded size, got %d", got.UploadedSize)
	}
}

func TestSessionRepository_DuplicateSessionID(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	session := newTestSession(t, repos, user, 100)

	dup := &models.UploadSession{
		SessionID:        session.SessionID,
		UserID:           user.ID,
		OriginalFilename: "other.fastq",
		TotalSize:        100,
		ChunkSize:        1024,
		TempPath:         "/tmp/upload-dup.tmp",
		Status:           models.SessionActive,
	}
	err := repos.Sessions.Create(context.Background(), dup)
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestSessionRepository_OwnershipIsLookupKey(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	owner := testutil.CreateTestUser(t, repos, "owner")
	other := testutil.CreateTestUser(t, repos, "other")
	ctx := context.Background()

	session := newTestSession(t, repos, owner, 100)

	got, err := repos.Sessions.GetBySessionID(ctx, session.SessionID, other.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected foreign session lookup to return nil")
	}

	got, err = repos.Sessions.GetBySessionID(ctx, "doesnotexist", owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected missing session lookup to return nil")
	}
}

func TestSessionRepository_AdvanceUploadedSize(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	session := newTestSession(t, repos, user, 1000)

	uploaded, err := repos.Sessions.AdvanceUploadedSize(ctx, session.SessionID, 500)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if uploaded != 500 {
		t.Errorf("expected uploaded 500, got %d", uploaded)
	}

	// Out-of-order and resent chunks must never move the mark backwards.
	uploaded, err = repos.Sessions.AdvanceUploadedSize(ctx, session.SessionID, 200)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if uploaded != 500 {
		t.Errorf("expected uploaded to stay 500, got %d", uploaded)
	}

	uploaded, err = repos.Sessions.AdvanceUploadedSize(ctx, session.SessionID, 1000)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if uploaded != 1000 {
		t.Errorf("expected uploaded 1000, got %d", uploaded)
	}
}

func TestSessionRepository_AdvanceAfterTransition(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	session := newTestSession(t, repos, user, 1000)

	ok, err := repos.Sessions.MarkCanceled(ctx, session.SessionID)
	if err != nil || !ok {
		t.Fatalf("expected cancel to succeed, ok=%v err=%v", ok, err)
	}

	_, err = repos.Sessions.AdvanceUploadedSize(ctx, session.SessionID, 500)
	if !errors.Is(err, repository.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestSessionRepository_TransitionIsOneShot(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	session := newTestSession(t, repos, user, 1000)

	ok, err := repos.Sessions.MarkCompleted(ctx, session.SessionID)
	if err != nil || !ok {
		t.Fatalf("expected first completion to win, ok=%v err=%v", ok, err)
	}

	// A second transition attempt of either kind loses the race.
	ok, err = repos.Sessions.MarkCompleted(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second completion to report no transition")
	}

	ok, err = repos.Sessions.MarkCanceled(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected cancel of completed session to report no transition")
	}
}

func TestSessionRepository_ReopenCompleted(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	session := newTestSession(t, repos, user, 1000)

	// Only a completed session can be reopened.
	ok, err := repos.Sessions.ReopenCompleted(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected reopen of active session to report no transition")
	}

	if ok, err := repos.Sessions.MarkCompleted(ctx, session.SessionID); err != nil || !ok {
		t.Fatalf("failed to complete session: ok=%v err=%v", ok, err)
	}

	ok, err = repos.Sessions.ReopenCompleted(ctx, session.SessionID)
	if err != nil || !ok {
		t.Fatalf("expected reopen to succeed, ok=%v err=%v", ok, err)
	}

	// The reopened session accepts uploads again.
	if _, err := repos.Sessions.AdvanceUploadedSize(ctx, session.SessionID, 500); err != nil {
		t.Fatalf("advance after reopen failed: %v", err)
	}

	// A canceled session stays terminal.
	if ok, err := repos.Sessions.MarkCanceled(ctx, session.SessionID); err != nil || !ok {
		t.Fatalf("failed to cancel session: ok=%v err=%v", ok, err)
	}
	ok, err = repos.Sessions.ReopenCompleted(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected reopen of canceled session to report no transition")
	}
}

func TestSessionRepository_GetAbandoned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos, err := sqlite.NewRepositories(db)
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	stale := newTestSession(t, repos, user, 100)
	newTestSession(t, repos, user, 100) // fresh, must not be reported
	done := newTestSession(t, repos, user, 100)

	if ok, err := repos.Sessions.MarkCompleted(ctx, done.SessionID); err != nil || !ok {
		t.Fatalf("failed to complete session: ok=%v err=%v", ok, err)
	}

	// Age the stale and completed sessions past the expiry window.
	old := time.Now().UTC().Add(-48 * time.Hour)
	for _, id := range []string{stale.SessionID, done.SessionID} {
		if _, err := db.Exec(
			`UPDATE upload_sessions SET last_activity = ? WHERE session_id = ?`, old, id); err != nil {
			t.Fatalf("failed to backdate session: %v", err)
		}
	}

	abandoned, err := repos.Sessions.GetAbandoned(ctx, 24)
	if err != nil {
		t.Fatalf("GetAbandoned failed: %v", err)
	}
	if len(abandoned) != 1 {
		t.Fatalf("expected 1 abandoned session, got %d", len(abandoned))
	}
	if abandoned[0].SessionID != stale.SessionID {
		t.Errorf("expected %s, got %s", stale.SessionID, abandoned[0].SessionID)
	}
}

func TestSessionRepository_GetUserSessionStats(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	alice := testutil.CreateTestUser(t, repos, "alice")
	bob := testutil.CreateTestUser(t, repos, "bob")
	ctx := context.Background()

	a1 := newTestSession(t, repos, alice, 1000)
	a2 := newTestSession(t, repos, alice, 1000)
	b1 := newTestSession(t, repos, bob, 1000)

	if _, err := repos.Sessions.AdvanceUploadedSize(ctx, a1.SessionID, 300); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if _, err := repos.Sessions.AdvanceUploadedSize(ctx, a2.SessionID, 200); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if _, err := repos.Sessions.AdvanceUploadedSize(ctx, b1.SessionID, 999); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	// Completed sessions drop out of the active stats.
	a3 := newTestSession(t, repos, alice, 1000)
	if ok, err := repos.Sessions.MarkCompleted(ctx, a3.SessionID); err != nil || !ok {
		t.Fatalf("failed to complete session: ok=%v err=%v", ok, err)
	}

	count, bytes, err := repos.Sessions.GetUserSessionStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserSessionStats failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 active sessions, got %d", count)
	}
	if bytes != 500 {
		t.Errorf("expected 500 session bytes, got %d", bytes)
	}
}
