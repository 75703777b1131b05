package testbed

import (
	"context"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
)

// The steps depend on narrow slices of the resource-manager client so
// tests can fake exactly what a step touches.

type ResourceGroupClient interface {
	CreateOrUpdateResourceGroup(ctx context.Context, name string, group azure.ResourceGroup) (*azure.ResourceGroup, error)
}

type StorageClient interface {
	CheckStorageAccountName(ctx context.Context, name string) (*azure.CheckNameAvailabilityResult, error)
	GetStorageAccount(ctx context.Context, resourceGroup, name string) (*azure.StorageAccount, error)
	CreateStorageAccount(ctx context.Context, resourceGroup, name string, params azure.StorageAccountCreateParameters) (*azure.StorageAccount, error)
}

type RegistryClient interface {
	CreateRegistry(ctx context.Context, resourceGroup, name string, params azure.RegistryCreateParameters) (*azure.Registry, error)
	ListRegistryCredentials(ctx context.Context, resourceGroup, name string) (*azure.RegistryCredentials, error)
}

type ContainerGroupClient interface {
	CreateContainerGroup(ctx context.Context, resourceGroup, name string, group azure.ContainerGroup) (*azure.ContainerGroup, error)
	GetContainerGroup(ctx context.Context, resourceGroup, name string) (*azure.ContainerGroup, error)
	ContainerLogs(ctx context.Context, resourceGroup, group, container string, tail int) (string, error)
	DeleteContainerGroup(ctx context.Context, resourceGroup, name string) error
}

type TeardownClient interface {
	ListResourceGroups(ctx context.Context, filter string) ([]azure.ResourceGroup, error)
	DeleteResourceGroup(ctx context.Context, name string) error
}

var (
	_ ResourceGroupClient  = &azure.Client{}
	_ StorageClient        = &azure.Client{}
	_ RegistryClient       = &azure.Client{}
	_ ContainerGroupClient = &azure.Client{}
	_ TeardownClient       = &azure.Client{}
)
