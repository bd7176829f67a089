package config

// AWSConfig represents the AWS configuration.
type AWSConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Region         string `mapstructure:"region"          validate:"required_if=Enabled true"`
	KMSKeyARN      string `mapstructure:"kms_key_arn"     validate:"omitempty,arn"`
	SnapshotBucket string `mapstructure:"snapshot_bucket"`
	SnapshotPrefix string `mapstructure:"snapshot_prefix"`
}
