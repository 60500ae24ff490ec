package core

import "time"

// TeamCredential holds cloud credentials for one team, or the global
// fallback when TeamID is nil. Key material is sealed at rest; the
// *Sealed fields never leave the store layer decrypted except through
// the credential resolver.
type TeamCredential struct {
	ID                 int64     `json:"id"`
	TeamID             *int64    `json:"team_id,omitempty"`
	AccessKeyIDSealed  string    `json:"-"`
	SecretKeySealed    string    `json:"-"`
	SessionTokenSealed string    `json:"-"`
	Region             string    `json:"region"`
	IsActive           bool      `json:"is_active"`
	CreatedBy          int64     `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
