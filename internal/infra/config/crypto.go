package config

// CryptoConfig lists every key version still referenced by the registry.
type CryptoConfig struct {
	CurrentVersion int         `mapstructure:"current_version" validate:"required,gt=0"`
	Keys           []KeyConfig `mapstructure:"keys"            validate:"required,min=1,dive"`
}

// KeyConfig is one base64-encoded key. KMSWrapped material is a KMS
// ciphertext blob that must be unwrapped before use.
type KeyConfig struct {
	Version    int    `mapstructure:"version"     validate:"required,gt=0"`
	Material   string `mapstructure:"material"    validate:"required"`
	KMSWrapped bool   `mapstructure:"kms_wrapped"`
}
