package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const apiVersionStorage = "2023-01-01"

type SKU struct {
	Name string `json:"name"`
}

type StorageAccountCreateParameters struct {
	Location string            `json:"location"`
	SKU      SKU               `json:"sku"`
	Kind     string            `json:"kind"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type StorageAccount struct {
	ID         string                   `json:"id,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Location   string                   `json:"location,omitempty"`
	SKU        SKU                      `json:"sku,omitempty"`
	Kind       string                   `json:"kind,omitempty"`
	Tags       map[string]string        `json:"tags,omitempty"`
	Properties StorageAccountProperties `json:"properties,omitempty"`
}

type StorageAccountProperties struct {
	ProvisioningState string `json:"provisioningState,omitempty"`
}

// CheckNameAvailabilityResult reports whether a storage-account name is free
// in the global namespace and, when it is not, why.
type CheckNameAvailabilityResult struct {
	NameAvailable bool   `json:"nameAvailable"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"message,omitempty"`
}

const (
	// NameReasonAlreadyExists is the service's reason when the name is
	// taken by an existing account, possibly our own.
	NameReasonAlreadyExists = "AlreadyExists"
)

type checkNameAvailabilityRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CheckStorageAccountName probes the global storage namespace. Account
// names must be unique across all of Azure, not just the subscription.
func (c *Client) CheckStorageAccountName(ctx context.Context, name string) (*CheckNameAvailabilityResult, error) {
	path := fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Storage/checkNameAvailability", url.PathEscape(c.subscriptionID))
	body := checkNameAvailabilityRequest{Name: name, Type: "Microsoft.Storage/storageAccounts"}
	var result CheckNameAvailabilityResult
	if _, err := c.do(ctx, http.MethodPost, path, apiVersionStorage, nil, body, &result); err != nil {
		return nil, fmt.Errorf("check storage account name %s: %w", name, err)
	}
	return &result, nil
}

func (c *Client) storageAccountPath(resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(resourceGroup), url.PathEscape(name))
}

// CreateStorageAccount creates the account and blocks until provisioning
// completes, then returns the provisioned account.
func (c *Client) CreateStorageAccount(ctx context.Context, resourceGroup, name string, params StorageAccountCreateParameters) (*StorageAccount, error) {
	path := c.storageAccountPath(resourceGroup, name)
	resp, err := c.do(ctx, http.MethodPut, path, apiVersionStorage, nil, params, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage account %s: %w", name, err)
	}
	if err := c.waitForOperation(ctx, resp, waitOptions{}); err != nil {
		return nil, fmt.Errorf("wait for storage account %s: %w", name, err)
	}
	var account StorageAccount
	if _, err := c.do(ctx, http.MethodGet, path, apiVersionStorage, nil, nil, &account); err != nil {
		return nil, fmt.Errorf("get storage account %s: %w", name, err)
	}
	return &account, nil
}

func (c *Client) GetStorageAccount(ctx context.Context, resourceGroup, name string) (*StorageAccount, error) {
	var account StorageAccount
	if _, err := c.do(ctx, http.MethodGet, c.storageAccountPath(resourceGroup, name), apiVersionStorage, nil, nil, &account); err != nil {
		return nil, fmt.Errorf("get storage account %s: %w", name, err)
	}
	return &account, nil
}
