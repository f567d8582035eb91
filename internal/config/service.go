package config

import "time"

const defaultClerkTimeout = 10 * time.Second

// Metadata backends.
const (
	MetadataBackendClerk  = "clerk"
	MetadataBackendMemory = "memory"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	AppURL      string `yaml:"app_url"`
	// MetadataBackend selects where user metadata lives. "memory" is for
	// local development and loses everything on restart.
	MetadataBackend string       `yaml:"metadata_backend"`
	Stripe          StripeConfig `yaml:"stripe"`
	Clerk           ClerkConfig  `yaml:"clerk"`
	Lookup          LookupConfig `yaml:"lookup"`
}

type StripeConfig struct {
	SecretKey             string `yaml:"secret_key"`
	WebhookSecret         string `yaml:"webhook_secret"`
	PortalConfigurationID string `yaml:"portal_configuration_id"`
}

type ClerkConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	// JWTKey is the PEM public key for RS256 session tokens, or an HMAC secret.
	JWTKey string `yaml:"jwt_key"`
	// AuthorizedParties restricts the azp claim of session tokens when set.
	AuthorizedParties []string      `yaml:"authorized_parties"`
	APIURL            string        `yaml:"api_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LookupConfig bounds the user scan done when the customer index misses.
type LookupConfig struct {
	PageSize  int `yaml:"page_size"`
	PageLimit int `yaml:"page_limit"`
}
