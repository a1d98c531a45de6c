package domain

import "time"

const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"

	TokenTypeBearer = "Bearer"
)

// AccessTokenClaims is the verified content of an access token. It is never
// persisted; validity lives entirely in the signature and the expiry.
type AccessTokenClaims struct {
	SubjectID   string
	Email       string
	DisplayName string
	Role        string
	ClientRef   string
	EmployeeRef string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RefreshTokenRecord is the server-side state of an issued refresh token.
// Records are never updated in place: rotation deletes and inserts.
type RefreshTokenRecord struct {
	Token     string
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IssuedRefreshToken is what the token service returns when minting a refresh token.
type IssuedRefreshToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SigningMaterial is the secret configuration fetched from the secret store.
// Expiries are compact duration strings such as "15m" or "7d".
type SigningMaterial struct {
	Secret        string
	AccessExpiry  string
	RefreshExpiry string
}

// AuthResult is returned to the transport layer after a successful login or refresh.
type AuthResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         PublicUser `json:"user"`
}
