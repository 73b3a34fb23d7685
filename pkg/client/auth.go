package client

import (
	"context"
	"net/url"
	"os"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/projectatomic/osbs-go/pkg/transport"
)

// loadAmbientCredentials looks for credentials in the environment:
// the in-cluster service account first (the common case when running
// inside a pod), then the local kubeconfig for development. It
// returns true when a usable token was found.
func (o *Openshift) loadAmbientCredentials() bool {
	if cfg, err := rest.InClusterConfig(); err == nil && o.adoptRestConfig(cfg) {
		o.logger.Info("using service account's auth token")
		return true
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			kubeconfig = home + "/.kube/config"
		}
	}
	if cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig); err == nil && o.adoptRestConfig(cfg) {
		o.logger.Info("using kubeconfig auth token", "path", kubeconfig)
		return true
	}
	return false
}

func (o *Openshift) adoptRestConfig(cfg *rest.Config) bool {
	token := cfg.BearerToken
	if token == "" && cfg.BearerTokenFile != "" {
		b, err := os.ReadFile(cfg.BearerTokenFile)
		if err != nil {
			return false
		}
		token = strings.TrimSpace(string(b))
	}
	if token == "" {
		return false
	}
	o.auth.Token = token
	if !o.auth.InsecureSkipTLSVerify && o.auth.CAFile == "" {
		o.auth.CAFile = cfg.TLSClientConfig.CAFile
	}
	return true
}

// GetOAuthToken exchanges the configured credentials for a bearer
// token through the challenging-client flow and stores it for
// subsequent requests.
func (o *Openshift) GetOAuthToken(ctx context.Context) (string, error) {
	token, err := o.fetchOAuthToken(ctx)
	if err != nil {
		return "", err
	}
	o.tokenMu.Lock()
	o.auth.Token = token
	o.tokenMu.Unlock()
	return token, nil
}

// fetchOAuthToken performs one token exchange: the authorize endpoint
// answers with a redirect whose fragment carries the access token.
// The caller stores the token under the lock.
func (o *Openshift) fetchOAuthToken(ctx context.Context) (string, error) {
	authorizeURL := o.oauthURL + "?response_type=token&client_id=openshift-challenging-client"

	opt, err := o.requestOptions(ctx, false, transport.Options{DisableRedirects: true})
	if err != nil {
		return "", err
	}
	switch {
	case o.auth.Username != "" && o.auth.Password != "":
		o.logger.Debug("using basic authentication")
		opt.Username = o.auth.Username
		opt.Password = o.auth.Password
	case o.auth.UseKerberos:
		o.logger.Debug("using kerberos authentication")
		opt.KerberosAuth = true
	default:
		o.logger.Debug("requesting token without explicit credentials")
	}

	resp, err := o.session.Get(ctx, authorizeURL, opt)
	if err != nil {
		return "", err
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &AuthError{Message: "no Location header in OAuth response, cannot retrieve token"}
	}
	redir, err := url.Parse(location)
	if err != nil {
		return "", &AuthError{Message: "malformed Location header in OAuth response"}
	}
	fragment, err := url.ParseQuery(redir.Fragment)
	if err != nil {
		return "", &AuthError{Message: "malformed fragment in OAuth redirect"}
	}
	token := fragment.Get("access_token")
	if token == "" {
		return "", &AuthError{Message: "no access token in OAuth redirect"}
	}
	return token, nil
}
