package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const apiVersionRegistry = "2023-07-01"

type RegistryCreateParameters struct {
	Location   string             `json:"location"`
	SKU        SKU                `json:"sku"`
	Tags       map[string]string  `json:"tags,omitempty"`
	Properties RegistryProperties `json:"properties"`
}

type Registry struct {
	ID         string             `json:"id,omitempty"`
	Name       string             `json:"name,omitempty"`
	Location   string             `json:"location,omitempty"`
	SKU        SKU                `json:"sku,omitempty"`
	Tags       map[string]string  `json:"tags,omitempty"`
	Properties RegistryProperties `json:"properties,omitempty"`
}

type RegistryProperties struct {
	LoginServer       string `json:"loginServer,omitempty"`
	AdminUserEnabled  bool   `json:"adminUserEnabled"`
	ProvisioningState string `json:"provisioningState,omitempty"`
}

// RegistryCredentials holds the admin credentials of a registry. The
// service returns two rotatable passwords; either one works.
type RegistryCredentials struct {
	Username  string             `json:"username"`
	Passwords []RegistryPassword `json:"passwords"`
}

type RegistryPassword struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Password returns the first usable password or an empty string.
func (c *RegistryCredentials) Password() string {
	if len(c.Passwords) == 0 {
		return ""
	}
	return c.Passwords[0].Value
}

func (c *Client) registryPath(resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerRegistry/registries/%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(resourceGroup), url.PathEscape(name))
}

// CreateRegistry creates a container registry and blocks until it is
// provisioned, then returns it so callers can read the login server.
func (c *Client) CreateRegistry(ctx context.Context, resourceGroup, name string, params RegistryCreateParameters) (*Registry, error) {
	path := c.registryPath(resourceGroup, name)
	resp, err := c.do(ctx, http.MethodPut, path, apiVersionRegistry, nil, params, nil)
	if err != nil {
		return nil, fmt.Errorf("create registry %s: %w", name, err)
	}
	if err := c.waitForOperation(ctx, resp, waitOptions{}); err != nil {
		return nil, fmt.Errorf("wait for registry %s: %w", name, err)
	}
	var registry Registry
	if _, err := c.do(ctx, http.MethodGet, path, apiVersionRegistry, nil, nil, &registry); err != nil {
		return nil, fmt.Errorf("get registry %s: %w", name, err)
	}
	return &registry, nil
}

func (c *Client) GetRegistry(ctx context.Context, resourceGroup, name string) (*Registry, error) {
	var registry Registry
	if _, err := c.do(ctx, http.MethodGet, c.registryPath(resourceGroup, name), apiVersionRegistry, nil, nil, &registry); err != nil {
		return nil, fmt.Errorf("get registry %s: %w", name, err)
	}
	return &registry, nil
}

// ListRegistryCredentials returns the admin credentials. The registry must
// have been created with the admin user enabled.
func (c *Client) ListRegistryCredentials(ctx context.Context, resourceGroup, name string) (*RegistryCredentials, error) {
	path := c.registryPath(resourceGroup, name) + "/listCredentials"
	var creds RegistryCredentials
	if _, err := c.do(ctx, http.MethodPost, path, apiVersionRegistry, nil, nil, &creds); err != nil {
		return nil, fmt.Errorf("list credentials for registry %s: %w", name, err)
	}
	return &creds, nil
}
