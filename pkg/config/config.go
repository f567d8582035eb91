// Package config resolves settings from the process environment through viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config gives read access to resolved settings.
type Config interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) IsSet(key string) bool                { return c.v.IsSet(key) }
func (c *viperConfig) GetString(key string) string          { return c.v.GetString(key) }
func (c *viperConfig) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *viperConfig) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *viperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *viperConfig) GetStringSlice(key string) []string   { return c.v.GetStringSlice(key) }

// Env returns a Config backed only by environment variables.
//
// Dotted keys resolve to PREFIX_SECTION_NAME (for example "server.http_port" with
// prefix "billing" reads BILLING_SERVER_HTTP_PORT). bindings adds explicit
// key-to-variable names for variables that do not follow the prefix scheme,
// such as STRIPE_SECRET_KEY.
func Env(prefix string, bindings map[string]string) (Config, error) {
	v := viper.New()
	if prefix != "" {
		v.SetEnvPrefix(strings.ToUpper(prefix))
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range bindings {
		if err := v.BindEnv(key, name); err != nil {
			return nil, err
		}
	}

	return &viperConfig{v: v}, nil
}
