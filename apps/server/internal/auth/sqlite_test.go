package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestSQLiteManager(t *testing.T) *SQLiteManager {
	t.Helper()
	m, err := NewSQLiteManager(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open sqlite manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSQLiteRegisterAndLogin(t *testing.T) {
	m := newTestSQLiteManager(t)

	accountID, token, err := m.Register("alice_01", "secret12")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if accountID == 0 || token == "" {
		t.Fatalf("expected account id and session token, got %d %q", accountID, token)
	}

	resolvedID, username, ok := m.ResolveSession(token)
	if !ok {
		t.Fatalf("expected valid session")
	}
	if resolvedID != accountID || username != "alice_01" {
		t.Fatalf("resolved wrong identity: id=%d username=%s", resolvedID, username)
	}

	loginID, loginToken, err := m.Login("alice_01", "secret12")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginID != accountID {
		t.Fatalf("expected same account id after login, got %d and %d", accountID, loginID)
	}
	if loginToken == token {
		t.Fatalf("expected a fresh session token per login")
	}
}

func TestSQLiteRegisterRejectsDuplicateUsername(t *testing.T) {
	m := newTestSQLiteManager(t)
	if _, _, err := m.Register("alice_01", "secret12"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	// 用户名唯一性不区分大小写
	if _, _, err := m.Register("Alice_01", "secret12"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSQLiteGuestCannotLoginWithPassword(t *testing.T) {
	m := newTestSQLiteManager(t)

	accountID, token, err := m.Guest()
	if err != nil {
		t.Fatalf("guest failed: %v", err)
	}
	resolvedID, username, ok := m.ResolveSession(token)
	if !ok || resolvedID != accountID {
		t.Fatalf("expected valid guest session, ok=%v id=%d", ok, resolvedID)
	}
	if username == "" {
		t.Fatalf("expected generated guest username")
	}

	// 游客账号没有口令散列，不能走密码登录
	if _, _, err := m.Login(username, "anything1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for guest login, got %v", err)
	}
}

func TestSQLiteLogoutRevokesSession(t *testing.T) {
	m := newTestSQLiteManager(t)
	_, token, err := m.Register("alice_01", "secret12")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	m.Logout(token)
	if _, _, ok := m.ResolveSession(token); ok {
		t.Fatalf("expected revoked token to be rejected")
	}
}
