package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// 用户名：3-32 位，字母数字下划线开头，后续允许 . 和 -
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Manager 单机内存实现：账号与会话都在进程内。
// 换 sqlite/postgres 实现不影响网关侧契约。
type Manager struct {
	mu sync.Mutex

	nextID     uint64
	sessionTTL time.Duration
	accounts   map[uint64]*account
	byUsername map[string]uint64
	sessions   map[string]*session
}

type account struct {
	id           uint64
	username     string
	passwordHash []byte
	guest        bool
	lastLoginAt  time.Time
}

type session struct {
	accountID uint64
	expiresAt time.Time
}

func NewManager() *Manager {
	return &Manager{
		nextID:     100000, // 账号号段从可读区间起
		sessionTTL: defaultSessionTTL,
		accounts:   make(map[uint64]*account),
		byUsername: make(map[string]uint64),
		sessions:   make(map[string]*session),
	}
}

// Register creates a password account and returns an authenticated session.
func (m *Manager) Register(username, password string) (accountID uint64, sessionToken string, err error) {
	if err = validateUsername(username); err != nil {
		return 0, "", err
	}
	if err = validatePassword(password); err != nil {
		return 0, "", err
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", err
	}
	normalized := normalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[normalized]; taken {
		return 0, "", ErrUsernameTaken
	}
	acct := m.createAccountLocked(normalized, passwordHash, false)
	return acct.id, m.startSessionLocked(acct), nil
}

// Login checks credentials and returns a fresh session.
func (m *Manager) Login(username, password string) (accountID uint64, sessionToken string, err error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.byUsername[normalized]
	if !exists {
		return 0, "", ErrInvalidCredentials
	}
	acct := m.accounts[id]
	if acct.guest || len(acct.passwordHash) == 0 {
		return 0, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}
	return acct.id, m.startSessionLocked(acct), nil
}

// Guest creates an anonymous account with an authenticated session.
// Guest accounts have no credentials and cannot log back in after Logout.
func (m *Manager) Guest() (accountID uint64, sessionToken string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	acct := m.createAccountLocked("guest_"+strconv.FormatUint(m.nextID, 10), nil, true)
	return acct.id, m.startSessionLocked(acct), nil
}

// ResolveSession validates a token and slides its expiry forward.
func (m *Manager) ResolveSession(token string) (accountID uint64, username string, ok bool) {
	if token == "" {
		return 0, "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[token]
	if !exists {
		return 0, "", false
	}
	now := time.Now()
	if !now.Before(sess.expiresAt) {
		delete(m.sessions, token)
		return 0, "", false
	}
	sess.expiresAt = now.Add(m.sessionTTL)

	acct := m.accounts[sess.accountID]
	return acct.id, acct.username, true
}

// Logout invalidates a session token.
func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// Close is a no-op for the in-memory manager.
func (m *Manager) Close() error {
	return nil
}

func (m *Manager) createAccountLocked(username string, passwordHash []byte, guest bool) *account {
	if !guest {
		m.nextID++
	}
	acct := &account{
		id:           m.nextID,
		username:     username,
		passwordHash: passwordHash,
		guest:        guest,
		lastLoginAt:  time.Now(),
	}
	m.accounts[acct.id] = acct
	m.byUsername[username] = acct.id
	return acct
}

func (m *Manager) startSessionLocked(acct *account) string {
	token := mustToken()
	m.sessions[token] = &session{
		accountID: acct.id,
		expiresAt: time.Now().Add(m.sessionTTL),
	}
	acct.lastLoginAt = time.Now()
	return token
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

// bcrypt 的输入上限是 72 字节
func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
