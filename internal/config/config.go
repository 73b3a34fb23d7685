package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range ClientOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/osbs/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("OSBS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) OpenshiftAPIURL() string {
	return c.v.GetString(keyOpenshiftAPIURL) // OSBS_OPENSHIFT_API_URL
}

func (c *Config) OpenshiftAPIVersion() string {
	return c.v.GetString(keyOpenshiftAPIVersion) // OSBS_OPENSHIFT_API_VERSION
}

// OpenshiftOAuthURL returns the configured authorize endpoint, or one
// derived from the API URL ({scheme}://{host}/oauth/authorize) when
// unset.
func (c *Config) OpenshiftOAuthURL() string {
	if u := c.v.GetString(keyOpenshiftOAuthURL); u != "" { // OSBS_OPENSHIFT_OAUTH_URL
		return u
	}
	api, err := url.Parse(c.OpenshiftAPIURL())
	if err != nil {
		return ""
	}
	api.Path = "/oauth/authorize"
	api.RawQuery = ""
	return api.String()
}

func (c *Config) KubernetesAPIURL() string {
	return c.v.GetString(keyKubernetesAPIURL) // OSBS_KUBERNETES_API_URL
}

func (c *Config) Namespace() string {
	return c.v.GetString(keyNamespace) // OSBS_NAMESPACE
}

func (c *Config) AuthToken() string {
	return c.v.GetString(keyAuthToken) // OSBS_AUTH_TOKEN
}

func (c *Config) AuthUsername() string {
	return c.v.GetString(keyAuthUsername) // OSBS_AUTH_USERNAME
}

func (c *Config) AuthPassword() string {
	return c.v.GetString(keyAuthPassword) // OSBS_AUTH_PASSWORD
}

func (c *Config) AuthClientCert() string {
	return c.v.GetString(keyAuthClientCert) // OSBS_AUTH_CLIENT_CERT
}

func (c *Config) AuthClientKey() string {
	return c.v.GetString(keyAuthClientKey) // OSBS_AUTH_CLIENT_KEY
}

func (c *Config) AuthUseKerberos() bool {
	return c.v.GetBool(keyAuthUseKerberos) // OSBS_AUTH_USE_KERBEROS
}

func (c *Config) TLSVerify() bool {
	return c.v.GetBool(keyTLSVerify) // OSBS_TLS_VERIFY
}

func (c *Config) TLSCA() string {
	return c.v.GetString(keyTLSCA) // OSBS_TLS_CA
}

func (c *Config) WatchReconnectDelay() time.Duration {
	return c.v.GetDuration(keyWatchReconnectDelay) // OSBS_WATCH_RECONNECT_DELAY
}

func (c *Config) WatchNotFoundRetries() int {
	return c.v.GetInt(keyWatchNotFoundRetries) // OSBS_WATCH_NOT_FOUND_RETRIES
}

func (c *Config) LogsIdleTimeout() time.Duration {
	return c.v.GetDuration(keyLogsIdleTimeout) // OSBS_LOGS_IDLE_TIMEOUT
}

func (c *Config) Verbose() bool {
	return c.v.GetBool(keyVerbose) // OSBS_VERBOSE
}
