package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const apiVersionContainerGroups = "2023-05-01"

// Container group states as reported in the group-level instance view.
const (
	ContainerStatePending   = "Pending"
	ContainerStateRunning   = "Running"
	ContainerStateSucceeded = "Succeeded"
	ContainerStateFailed    = "Failed"
	ContainerStateStopped   = "Stopped"
)

// ContainerStateTerminated is the per-container state of a finished
// container, the point at which its exit code is meaningful.
const ContainerStateTerminated = "Terminated"

const (
	OSTypeLinux        = "Linux"
	RestartPolicyNever = "Never"
)

type ContainerGroup struct {
	ID         string                   `json:"id,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Location   string                   `json:"location,omitempty"`
	Tags       map[string]string        `json:"tags,omitempty"`
	Properties ContainerGroupProperties `json:"properties"`
}

type ContainerGroupProperties struct {
	Containers               []Container               `json:"containers"`
	ImageRegistryCredentials []ImageRegistryCredential `json:"imageRegistryCredentials,omitempty"`
	RestartPolicy            string                    `json:"restartPolicy,omitempty"`
	OSType                   string                    `json:"osType"`
	ProvisioningState        string                    `json:"provisioningState,omitempty"`
	InstanceView             *ContainerGroupView       `json:"instanceView,omitempty"`
}

type Container struct {
	Name       string              `json:"name"`
	Properties ContainerProperties `json:"properties"`
}

type ContainerProperties struct {
	Image                string                `json:"image"`
	Command              []string              `json:"command,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
	Resources            ResourceRequirements  `json:"resources"`
	InstanceView         *ContainerView        `json:"instanceView,omitempty"`
}

type EnvironmentVariable struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	SecureValue string `json:"secureValue,omitempty"`
}

type ResourceRequirements struct {
	Requests ResourceRequests `json:"requests"`
}

type ResourceRequests struct {
	CPU        float64 `json:"cpu"`
	MemoryInGB float64 `json:"memoryInGB"`
}

type ImageRegistryCredential struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// ContainerGroupView is the group-level instance view. State moves
// through Pending and Running before settling on Succeeded, Failed or
// Stopped.
type ContainerGroupView struct {
	State  string           `json:"state,omitempty"`
	Events []ContainerEvent `json:"events,omitempty"`
}

// ContainerView is the per-container instance view, the only place the
// exit code of a finished container shows up. Image pulls that never
// complete are only visible through the events.
type ContainerView struct {
	CurrentState *ContainerState  `json:"currentState,omitempty"`
	RestartCount int              `json:"restartCount,omitempty"`
	Events       []ContainerEvent `json:"events,omitempty"`
}

type ContainerEvent struct {
	Count          int    `json:"count,omitempty"`
	FirstTimestamp string `json:"firstTimestamp,omitempty"`
	LastTimestamp  string `json:"lastTimestamp,omitempty"`
	Name           string `json:"name,omitempty"`
	Message        string `json:"message,omitempty"`
	Type           string `json:"type,omitempty"`
}

type ContainerState struct {
	State        string `json:"state,omitempty"`
	ExitCode     int    `json:"exitCode,omitempty"`
	DetailStatus string `json:"detailStatus,omitempty"`
}

type containerLogs struct {
	Content string `json:"content"`
}

func (c *Client) containerGroupPath(resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerInstance/containerGroups/%s",
		url.PathEscape(c.subscriptionID), url.PathEscape(resourceGroup), url.PathEscape(name))
}

// CreateContainerGroup creates the group and blocks until the service
// accepts it. The containers may still be pulling or starting when this
// returns; poll GetContainerGroup for the instance views.
func (c *Client) CreateContainerGroup(ctx context.Context, resourceGroup, name string, group ContainerGroup) (*ContainerGroup, error) {
	path := c.containerGroupPath(resourceGroup, name)
	resp, err := c.do(ctx, http.MethodPut, path, apiVersionContainerGroups, nil, group, nil)
	if err != nil {
		return nil, fmt.Errorf("create container group %s: %w", name, err)
	}
	if err := c.waitForOperation(ctx, resp, waitOptions{}); err != nil {
		return nil, fmt.Errorf("wait for container group %s: %w", name, err)
	}
	return c.GetContainerGroup(ctx, resourceGroup, name)
}

func (c *Client) GetContainerGroup(ctx context.Context, resourceGroup, name string) (*ContainerGroup, error) {
	var group ContainerGroup
	if _, err := c.do(ctx, http.MethodGet, c.containerGroupPath(resourceGroup, name), apiVersionContainerGroups, nil, nil, &group); err != nil {
		return nil, fmt.Errorf("get container group %s: %w", name, err)
	}
	return &group, nil
}

// ContainerLogs fetches up to tail lines of a container's log. A tail of
// zero or less fetches whatever the service keeps.
func (c *Client) ContainerLogs(ctx context.Context, resourceGroup, group, container string, tail int) (string, error) {
	path := c.containerGroupPath(resourceGroup, group) + "/containers/" + url.PathEscape(container) + "/logs"
	var query url.Values
	if tail > 0 {
		query = url.Values{"tail": []string{strconv.Itoa(tail)}}
	}
	var logs containerLogs
	if _, err := c.do(ctx, http.MethodGet, path, apiVersionContainerGroups, query, nil, &logs); err != nil {
		return "", fmt.Errorf("get logs for container %s in group %s: %w", container, group, err)
	}
	return logs.Content, nil
}

// DeleteContainerGroup deletes the group and blocks until it is gone.
// Deleting a group that does not exist is not an error.
func (c *Client) DeleteContainerGroup(ctx context.Context, resourceGroup, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.containerGroupPath(resourceGroup, name), apiVersionContainerGroups, nil, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete container group %s: %w", name, err)
	}
	if err := c.waitForOperation(ctx, resp, waitOptions{notFoundOK: true}); err != nil {
		return fmt.Errorf("wait for container group %s deletion: %w", name, err)
	}
	return nil
}
