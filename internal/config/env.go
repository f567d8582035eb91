package config

import (
	"fmt"
	"strings"

	pkgconfig "github.com/richstorm00/saas-starter/pkg/config"
)

// envBindings maps settings to the environment variables deployments use.
var envBindings = map[string]string{
	"stripe.secret_key":              "STRIPE_SECRET_KEY",
	"stripe.webhook_secret":          "STRIPE_WEBHOOK_SECRET",
	"stripe.portal_configuration_id": "STRIPE_PORTAL_CONFIGURATION_ID",
	"clerk.secret_key":               "CLERK_SECRET_KEY",
	"clerk.publishable_key":          "CLERK_PUBLISHABLE_KEY",
	"clerk.jwt_key":                  "CLERK_JWT_KEY",
	"clerk.api_url":                  "CLERK_API_URL",
	"clerk.authorized_parties":       "CLERK_AUTHORIZED_PARTIES",
	"app.url":                        "APP_URL",
	"app.env":                        "APP_ENV",
	"metadata.backend":               "METADATA_BACKEND",
	"database.url":                   "DATABASE_URL",
	"redis.addr":                     "REDIS_ADDR",
	"redis.password":                 "REDIS_PASSWORD",
	"sentry.dsn":                     "SENTRY_DSN",
	"log.level":                      "LOG_LEVEL",
	"http.port":                      "PORT",
}

// ApplyEnv overlays environment variables on c. Setting DATABASE_URL or
// REDIS_ADDR also enables that backend.
func (c *Config) ApplyEnv() error {
	env, err := pkgconfig.Env("billing", envBindings)
	if err != nil {
		return fmt.Errorf("failed to bind environment: %w", err)
	}

	setString(env, "stripe.secret_key", &c.Service.Stripe.SecretKey)
	setString(env, "stripe.webhook_secret", &c.Service.Stripe.WebhookSecret)
	setString(env, "stripe.portal_configuration_id", &c.Service.Stripe.PortalConfigurationID)
	setString(env, "clerk.secret_key", &c.Service.Clerk.SecretKey)
	setString(env, "clerk.publishable_key", &c.Service.Clerk.PublishableKey)
	setString(env, "clerk.jwt_key", &c.Service.Clerk.JWTKey)
	setString(env, "clerk.api_url", &c.Service.Clerk.APIURL)
	setString(env, "app.url", &c.Service.AppURL)
	setString(env, "app.env", &c.Service.Environment)
	setString(env, "metadata.backend", &c.Service.MetadataBackend)
	setString(env, "redis.password", &c.Redis.Password)
	setString(env, "sentry.dsn", &c.Sentry.DSN)
	setString(env, "log.level", &c.Log.Level)

	var parties string
	if setString(env, "clerk.authorized_parties", &parties) {
		c.Service.Clerk.AuthorizedParties = splitList(parties)
	}

	if setString(env, "database.url", &c.Database.URL) {
		c.Database.Enabled = true
	}
	if setString(env, "redis.addr", &c.Redis.Addr) {
		c.Redis.Enabled = true
	}
	if env.IsSet("http.port") {
		if port := env.GetInt("http.port"); port > 0 {
			c.Server.HTTP.Port = port
		}
	}

	if c.Sentry.Environment == "" {
		c.Sentry.Environment = c.Service.Environment
	}
	if c.Sentry.Release == "" {
		c.Sentry.Release = c.Service.Version
	}
	return nil
}

func setString(env pkgconfig.Config, key string, dst *string) bool {
	if v := env.GetString(key); v != "" {
		*dst = v
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
