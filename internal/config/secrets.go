package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alanyoungcy/polymarketbot/internal/secretbox"
)

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	out.Supabase = cfg.Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Feed.Exchanges != nil {
		out.Feed.Exchanges = make([]string, len(cfg.Feed.Exchanges))
		copy(out.Feed.Exchanges, cfg.Feed.Exchanges)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// sealedSecrets is the shape of the JSON payload sealed by secretbox.Seal
// and decrypted by ApplySealedSecrets; each field maps to the Config value
// it overrides when present.
type sealedSecrets struct {
	SupabasePassword string `json:"supabase_password"`
	SupabaseDSN      string `json:"supabase_dsn"`
	RedisPassword    string `json:"redis_password"`
	S3AccessKey      string `json:"s3_access_key"`
	S3SecretKey      string `json:"s3_secret_key"`
}

// ApplySealedSecrets reads the sealed-secrets file at path, decrypts it with
// password using secretbox, and overrides the corresponding store/cache
// credential fields on cfg. Call this after Load and before Validate when
// credentials are distributed as an encrypted bundle rather than plain TOML
// or environment variables.
func ApplySealedSecrets(cfg *Config, path string, password string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading sealed secrets file: %w", err)
	}

	plaintext, err := secretbox.Open(blob, password)
	if err != nil {
		return fmt.Errorf("config: opening sealed secrets: %w", err)
	}

	var secrets sealedSecrets
	if err := json.Unmarshal([]byte(plaintext), &secrets); err != nil {
		return fmt.Errorf("config: parsing sealed secrets payload: %w", err)
	}

	if secrets.SupabasePassword != "" {
		cfg.Supabase.Password = secrets.SupabasePassword
	}
	if secrets.SupabaseDSN != "" {
		cfg.Supabase.DSN = secrets.SupabaseDSN
	}
	if secrets.RedisPassword != "" {
		cfg.Redis.Password = secrets.RedisPassword
	}
	if secrets.S3AccessKey != "" {
		cfg.S3.AccessKey = secrets.S3AccessKey
	}
	if secrets.S3SecretKey != "" {
		cfg.S3.SecretKey = secrets.S3SecretKey
	}

	return nil
}

// SealSecrets serializes the given secret values and encrypts them with
// password, returning a blob suitable for writing to the path consumed by
// ApplySealedSecrets. Used by operators to produce the sealed-secrets file
// out of band; never called from the running engine itself.
func SealSecrets(secrets map[string]string, password string) ([]byte, error) {
	payload := sealedSecrets{
		SupabasePassword: secrets["supabase_password"],
		SupabaseDSN:      secrets["supabase_dsn"],
		RedisPassword:    secrets["redis_password"],
		S3AccessKey:      secrets["s3_access_key"],
		S3SecretKey:      secrets["s3_secret_key"],
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("config: marshaling secrets payload: %w", err)
	}

	return secretbox.Seal(string(plaintext), password)
}
