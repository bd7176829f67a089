package provisioning

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	databasePrefix = "parish_"
	loginPrefix    = "parish_u_"
	nameRandBytes  = 12 // 24 hex chars
	secretBytes    = 32
)

// Credentials are the generated names and secret for one parish.
type Credentials struct {
	Database string
	Login    string
	Secret   string
}

// GenerateCredentials draws unguessable names and a 256-bit login secret.
func GenerateCredentials() (Credentials, error) {
	db, err := randomHex(nameRandBytes)
	if err != nil {
		return Credentials{}, err
	}
	login, err := randomHex(nameRandBytes)
	if err != nil {
		return Credentials{}, err
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return Credentials{}, fmt.Errorf("failed to generate login secret: %w", err)
	}

	return Credentials{
		Database: databasePrefix + db,
		Login:    loginPrefix + login,
		Secret:   base64.RawURLEncoding.EncodeToString(secret),
	}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate identifier: %w", err)
	}
	return hex.EncodeToString(b), nil
}
