package revocation

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(time.Hour)
	t.Cleanup(s.Stop)
	return s
}

func TestMemoryStore_RevokeThenIsRevoked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-1", time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	revoked, err := s.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !revoked {
		t.Error("IsRevoked = false, want true")
	}
}

func TestMemoryStore_UnknownJTINotRevoked(t *testing.T) {
	s := newTestStore(t)

	revoked, err := s.IsRevoked(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if revoked {
		t.Error("IsRevoked = true, want false")
	}
}

// 期限の過ぎたエントリは未失効扱いになることを検証
func TestMemoryStore_ExpiredEntryNotRevoked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-old", time.Now().Add(-1*time.Minute)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	revoked, err := s.IsRevoked(ctx, "jti-old")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if revoked {
		t.Error("IsRevoked = true for expired entry, want false")
	}
}

func TestMemoryStore_CleanupRemovesExpiredEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Revoke(ctx, "jti-expired", time.Now().Add(-1*time.Minute))
	s.Revoke(ctx, "jti-live", time.Now().Add(15*time.Minute))

	s.cleanup()

	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	revoked, _ := s.IsRevoked(ctx, "jti-live")
	if !revoked {
		t.Error("live entry should survive cleanup")
	}
}

func TestMemoryStore_RevokeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().Add(10 * time.Minute)
	s.Revoke(ctx, "jti-1", exp)
	s.Revoke(ctx, "jti-1", exp)

	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}
