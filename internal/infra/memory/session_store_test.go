package memory

import "testing"

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := store.Create("alice@example.com")
	if session == nil || session.ID() == "" {
		t.Fatalf("expected session with id")
	}
	if got, ok := store.Get(session.ID()); !ok || got != session {
		t.Fatalf("expected session present")
	}
	if other := store.Create("alice@example.com"); other.ID() == session.ID() {
		t.Fatalf("expected distinct session ids")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", store.Len())
	}

	store.Delete(session.ID())
	if _, ok := store.Get(session.ID()); ok {
		t.Fatalf("expected session removed")
	}
}
