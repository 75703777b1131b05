package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const apiVersionResourceGroups = "2021-04-01"

type ResourceGroup struct {
	ID         string                   `json:"id,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Location   string                   `json:"location"`
	Tags       map[string]string        `json:"tags,omitempty"`
	Properties *ResourceGroupProperties `json:"properties,omitempty"`
}

type ResourceGroupProperties struct {
	ProvisioningState string `json:"provisioningState,omitempty"`
}

type resourceGroupList struct {
	Value    []ResourceGroup `json:"value"`
	NextLink string          `json:"nextLink,omitempty"`
}

// TagFilter builds the $filter expression that narrows a resource-group
// listing to groups carrying the given tag.
func TagFilter(name, value string) string {
	return fmt.Sprintf("tagName eq '%s' and tagValue eq '%s'", name, value)
}

func (c *Client) resourceGroupPath(name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourcegroups/%s", url.PathEscape(c.subscriptionID), url.PathEscape(name))
}

// CreateOrUpdateResourceGroup creates the group or brings an existing one in
// line with the given location and tags. Resource-group creation completes
// synchronously.
func (c *Client) CreateOrUpdateResourceGroup(ctx context.Context, name string, group ResourceGroup) (*ResourceGroup, error) {
	var created ResourceGroup
	if _, err := c.do(ctx, http.MethodPut, c.resourceGroupPath(name), apiVersionResourceGroups, nil, group, &created); err != nil {
		return nil, fmt.Errorf("create resource group %s: %w", name, err)
	}
	return &created, nil
}

func (c *Client) GetResourceGroup(ctx context.Context, name string) (*ResourceGroup, error) {
	var group ResourceGroup
	if _, err := c.do(ctx, http.MethodGet, c.resourceGroupPath(name), apiVersionResourceGroups, nil, nil, &group); err != nil {
		return nil, fmt.Errorf("get resource group %s: %w", name, err)
	}
	return &group, nil
}

// ListResourceGroups returns every group in the subscription, following
// nextLink pages. filter is an OData $filter expression, see TagFilter;
// the empty string lists everything.
func (c *Client) ListResourceGroups(ctx context.Context, filter string) ([]ResourceGroup, error) {
	query := url.Values{}
	if filter != "" {
		query.Set("$filter", filter)
	}

	var groups []ResourceGroup
	var page resourceGroupList
	path := fmt.Sprintf("/subscriptions/%s/resourcegroups", url.PathEscape(c.subscriptionID))
	if _, err := c.do(ctx, http.MethodGet, path, apiVersionResourceGroups, query, nil, &page); err != nil {
		return nil, fmt.Errorf("list resource groups: %w", err)
	}
	groups = append(groups, page.Value...)

	for page.NextLink != "" {
		next := page.NextLink
		page = resourceGroupList{}
		if _, err := c.doURL(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list resource groups (next page): %w", err)
		}
		groups = append(groups, page.Value...)
	}
	return groups, nil
}

// DeleteResourceGroup deletes the group and everything in it, blocking until
// the deletion finishes. Deleting a group that does not exist is not an
// error.
func (c *Client) DeleteResourceGroup(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.resourceGroupPath(name), apiVersionResourceGroups, nil, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete resource group %s: %w", name, err)
	}
	if err := c.waitForOperation(ctx, resp, waitOptions{notFoundOK: true}); err != nil {
		return fmt.Errorf("wait for resource group %s deletion: %w", name, err)
	}
	return nil
}
