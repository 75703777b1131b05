package azure

import (
	"fmt"
	"os"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	EnvClientID       = "AZURE_CLIENT_ID"
	EnvClientSecret   = "AZURE_CLIENT_SECRET"
	EnvTenantID       = "AZURE_TENANT_ID"
	EnvSubscriptionID = "AZURE_SUBSCRIPTION_ID"
)

const (
	defaultResourceManagerEndpoint = "https://management.azure.com"
	defaultAuthorityHost           = "https://login.microsoftonline.com"
)

// Config carries the service-principal credentials for a subscription.
type Config struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	SubscriptionID string

	// ResourceManagerEndpoint and AuthorityHost default to the public
	// cloud. Tests point them at local servers.
	ResourceManagerEndpoint string
	AuthorityHost           string
}

// ConfigFromEnv reads the four credential variables from the environment.
// It does not validate them, call Validate for that.
func ConfigFromEnv() Config {
	return Config{
		ClientID:       os.Getenv(EnvClientID),
		ClientSecret:   os.Getenv(EnvClientSecret),
		TenantID:       os.Getenv(EnvTenantID),
		SubscriptionID: os.Getenv(EnvSubscriptionID),
	}
}

// Validate reports every missing credential, not just the first one.
func (c Config) Validate() error {
	var errs []error
	for _, credential := range []struct {
		env   string
		value string
	}{
		{EnvClientID, c.ClientID},
		{EnvClientSecret, c.ClientSecret},
		{EnvTenantID, c.TenantID},
		{EnvSubscriptionID, c.SubscriptionID},
	} {
		if credential.value == "" {
			errs = append(errs, fmt.Errorf("$%s is not set", credential.env))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (c Config) resourceManagerEndpoint() string {
	if c.ResourceManagerEndpoint != "" {
		return c.ResourceManagerEndpoint
	}
	return defaultResourceManagerEndpoint
}

func (c Config) authorityHost() string {
	if c.AuthorityHost != "" {
		return c.AuthorityHost
	}
	return defaultAuthorityHost
}
