package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
)

// ConnectionDescriptor is the plaintext connection payload protected by the cipher.
type ConnectionDescriptor struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode,omitempty"`
}

// URL renders the descriptor as a postgres connection URL understood by pgx
// and golang-migrate.
func (d *ConnectionDescriptor) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}

// LogValue keeps the password out of structured logs.
func (d *ConnectionDescriptor) LogValue() slog.Value {
	if d == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("database", d.Database),
		slog.String("user", d.User),
		slog.String("password", "[REDACTED]"),
	)
}

// Wipe drops the secret from memory. Go strings are immutable, so this only
// releases the reference; the serialized bytes are zeroed by the cipher.
func (d *ConnectionDescriptor) Wipe() {
	if d == nil {
		return
	}
	d.Password = ""
}

func (d *ConnectionDescriptor) Validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("descriptor host is empty")
	case d.Port <= 0 || d.Port > 65535:
		return fmt.Errorf("descriptor port %d out of range", d.Port)
	case d.Database == "":
		return fmt.Errorf("descriptor database is empty")
	case d.User == "":
		return fmt.Errorf("descriptor user is empty")
	}
	return nil
}

func MarshalDescriptor(d *ConnectionDescriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

func UnmarshalDescriptor(raw []byte) (*ConnectionDescriptor, error) {
	var d ConnectionDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode connection descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
