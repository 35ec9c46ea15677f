package models

import "time"

// SecretRecord is one stored secret as the storage layer sees it.
// The value only ever exists here as AES-GCM ciphertext.
type SecretRecord struct {
	ID         int64
	Key        string
	Ciphertext []byte
	Nonce      []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SecretItem is the masked projection returned by every listing path.
type SecretItem struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	ValueMasked string `json:"value_masked"`
}

// Secret is a decrypted secret. Only produced for single-secret reveal and
// for export/sync, never for list views.
type Secret struct {
	ID        int64
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnvPair is one KEY=value entry of .env text.
type EnvPair struct {
	Key   string
	Value string
}
