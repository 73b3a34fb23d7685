// Package cmd contains the osbs CLI subcommands. Each constructor
// receives the shared configuration; the client itself is built at
// run time so that flag and environment overrides are in effect.
package cmd

import (
	"encoding/json"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/projectatomic/osbs-go/internal/config"
	"github.com/projectatomic/osbs-go/pkg/client"
)

// newClient assembles the API client from the resolved configuration.
func newClient(conf *config.Config) *client.Openshift {
	return client.New(client.Config{
		APIURL:     conf.OpenshiftAPIURL(),
		K8sAPIURL:  conf.KubernetesAPIURL(),
		OAuthURL:   conf.OpenshiftOAuthURL(),
		APIVersion: conf.OpenshiftAPIVersion(),
		Namespace:  conf.Namespace(),
		Auth: client.Auth{
			Token:                 conf.AuthToken(),
			Username:              conf.AuthUsername(),
			Password:              conf.AuthPassword(),
			ClientCert:            conf.AuthClientCert(),
			ClientKey:             conf.AuthClientKey(),
			UseKerberos:           conf.AuthUseKerberos(),
			CAFile:                conf.TLSCA(),
			InsecureSkipTLSVerify: !conf.TLSVerify(),
		},
		Options: client.Options{
			ReconnectDelay:   conf.WatchReconnectDelay(),
			LogIdleThreshold: conf.LogsIdleTimeout(),
			NotFoundRetries:  conf.WatchNotFoundRetries(),
		},
	})
}

// printObject writes a resource document as indented JSON.
func printObject(w io.Writer, obj *unstructured.Unstructured) error {
	out, err := json.MarshalIndent(obj.Object, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

// lastVersion reads status.lastVersion from a build config document.
// Missing or non-integral values count as zero.
func lastVersion(obj *unstructured.Unstructured) int64 {
	v, found, err := unstructured.NestedFieldNoCopy(obj.Object, "status", "lastVersion")
	if !found || err != nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
