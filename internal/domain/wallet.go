// internal/domain/wallet.go
package domain

import "time"

// UserWallet is the custodial wallet record kept for one chat identity.
// The private key is only ever held here in encrypted form.
type UserWallet struct {
	UserID              string    `json:"user_id"`
	PublicKey           string    `json:"public_key"`
	EncryptedPrivateKey string    `json:"-"`
	EncryptionVersion   string    `json:"encryption_version"`
	PasswordHash        *string   `json:"-"`
	IsLocked            bool      `json:"is_locked"`
	ThreadID            *string   `json:"thread_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasPassword reports whether a lock password was ever set.
func (w *UserWallet) HasPassword() bool {
	return w.PasswordHash != nil && *w.PasswordHash != ""
}

// Thread returns the conversation thread id or "" if none was assigned yet.
func (w *UserWallet) Thread() string {
	if w.ThreadID == nil {
		return ""
	}
	return *w.ThreadID
}

// WalletKeys is a freshly generated keypair before it is sealed.
type WalletKeys struct {
	Address    string
	PrivateKey string // base64 encoded 64 byte secret key
}
