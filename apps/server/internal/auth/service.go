package auth

// Service is the auth/session contract consumed by gateway and HTTP handlers.
type Service interface {
	Register(username, password string) (accountID uint64, sessionToken string, err error)
	Login(username, password string) (accountID uint64, sessionToken string, err error)
	// Guest creates a throwaway account with an authenticated session.
	Guest() (accountID uint64, sessionToken string, err error)
	ResolveSession(token string) (accountID uint64, username string, ok bool)
	Logout(token string)
	Close() error
}

var (
	_ Service = (*Manager)(nil)
	_ Service = (*SQLiteManager)(nil)
	_ Service = (*PostgresManager)(nil)
)
