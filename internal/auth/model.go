package auth

import "time"

type Action string

const (
	ActionAuth          Action = "auth"
	ActionLogin         Action = "login"
	ActionResetPassword Action = "reset_password"
)

type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderGoogle    Provider = "google"
	ProviderGitHub    Provider = "github"
	ProviderMicrosoft Provider = "microsoft"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub, ProviderMicrosoft:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// AuthToken tracks a single login attempt from initiation to a terminal status.
type AuthToken struct {
	ID               string     `json:"id"`
	Action           Action     `json:"action"`
	Provider         Provider   `json:"provider"`
	Status           Status     `json:"status"`
	UserID           string     `json:"user_id,omitempty"`
	Description      string     `json:"description,omitempty"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ExchangedAt      *time.Time `json:"exchanged_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// APIToken is the long-lived bearer credential. Value is only populated when the
// token is minted; the store keeps a digest.
type APIToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Value     string    `json:"value,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type NextStep struct {
	Method string   `json:"method"`
	Path   string   `json:"path"`
	Params []string `json:"params"`
}

type Initiation struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expires_on"`
	Next      NextStep  `json:"next"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Active           bool
	TwoFactorEnabled bool
	TwoFactorSecret  string
}

func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

type ProviderRecord struct {
	Provider Provider
	Active   bool
}

type TokenFilter struct {
	Action      Action
	Provider    Provider
	Status      Status
	Description string
}

type TokenPage struct {
	Data  []AuthToken `json:"data"`
	Count int64       `json:"count"`
}

type PurgeResult struct {
	DeletedAuthTokens int64 `json:"deleted_count_token"`
	DeletedAPITokens  int64 `json:"deleted_count_api"`
}

// Principal is the authenticated caller resolved from an API token.
type Principal struct {
	UserID  string
	TokenID string
}
