// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix OSBS_)
//  3. Config file (config.yaml in . or /etc/osbs/)
//  4. Compiled defaults
package config

// Viper keys for cluster endpoints.
const (
	keyOpenshiftAPIURL     = "openshift.api_url"
	keyOpenshiftAPIVersion = "openshift.api_version"
	keyOpenshiftOAuthURL   = "openshift.oauth_url"
	keyKubernetesAPIURL    = "kubernetes.api_url"
	keyNamespace           = "namespace"
)

// Viper keys for authentication.
const (
	keyAuthToken       = "auth.token"
	keyAuthUsername    = "auth.username"
	keyAuthPassword    = "auth.password"
	keyAuthClientCert  = "auth.client_cert"
	keyAuthClientKey   = "auth.client_key"
	keyAuthUseKerberos = "auth.use_kerberos"
)

// Viper keys for TLS.
const (
	keyTLSVerify = "tls.verify"
	keyTLSCA     = "tls.ca"
)

// Viper keys for watch and log streaming behaviour.
const (
	keyWatchReconnectDelay  = "watch.reconnect_delay"
	keyWatchNotFoundRetries = "watch.not_found_retries"
	keyLogsIdleTimeout      = "logs.idle_timeout"
)

const keyVerbose = "verbose"
