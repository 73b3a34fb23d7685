package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// ClientOptions defines the configuration entries of the build
// client. Each entry is registered as a viper default and a CLI flag.
var ClientOptions = []Option{
	{Key: keyOpenshiftAPIURL, Flag: toFlag(keyOpenshiftAPIURL), Default: "https://localhost:8443/oapi/v1/", Description: "OpenShift API root URL"},
	{Key: keyOpenshiftAPIVersion, Flag: toFlag(keyOpenshiftAPIVersion), Default: "v1", Description: "OpenShift API version"},
	{Key: keyOpenshiftOAuthURL, Flag: toFlag(keyOpenshiftOAuthURL), Default: "", Description: "OAuth authorize URL (derived from the API URL when empty)"},
	{Key: keyKubernetesAPIURL, Flag: toFlag(keyKubernetesAPIURL), Default: "https://localhost:8443/api/v1/", Description: "Kubernetes API root URL"},
	{Key: keyNamespace, Flag: toFlag(keyNamespace), Default: "default", Description: "Namespace to operate in"},
	{Key: keyAuthToken, Flag: toFlag(keyAuthToken), Default: "", Description: "Bearer token"},
	{Key: keyAuthUsername, Flag: toFlag(keyAuthUsername), Default: "", Description: "Username for OAuth basic authentication"},
	{Key: keyAuthPassword, Flag: toFlag(keyAuthPassword), Default: "", Description: "Password for OAuth basic authentication"},
	{Key: keyAuthClientCert, Flag: toFlag(keyAuthClientCert), Default: "", Description: "Client certificate PEM file"},
	{Key: keyAuthClientKey, Flag: toFlag(keyAuthClientKey), Default: "", Description: "Client key PEM file"},
	{Key: keyAuthUseKerberos, Flag: toFlag(keyAuthUseKerberos), Default: false, Description: "Use kerberos authentication"},
	{Key: keyTLSVerify, Flag: toFlag(keyTLSVerify), Default: true, Description: "Verify the server certificate"},
	{Key: keyTLSCA, Flag: toFlag(keyTLSCA), Default: "", Description: "CA bundle PEM file"},
	{Key: keyWatchReconnectDelay, Flag: toFlag(keyWatchReconnectDelay), Default: 30 * time.Second, Description: "Delay before reopening a closed watch stream"},
	{Key: keyWatchNotFoundRetries, Flag: toFlag(keyWatchNotFoundRetries), Default: 9, Description: "Retries around spurious not-found while waiting for a build"},
	{Key: keyLogsIdleTimeout, Flag: toFlag(keyLogsIdleTimeout), Default: 60 * time.Second, Description: "Idle threshold separating finished logs from a dropped connection"},
	{Key: keyVerbose, Flag: toFlag(keyVerbose), Default: false, Description: "Enable debug logging"},
}

// toFlag converts a viper key like "openshift.api_url" into a CLI
// flag like "openshift-api-url" by lower-casing and replacing dots
// and underscores with hyphens.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return flag
}
