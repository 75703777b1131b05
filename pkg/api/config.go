// Package api holds the testbed configuration: which resource group,
// storage account, registry and container instance the tool provisions,
// and how the test-runner image is built and executed.
package api

import (
	"fmt"
	"os"
	"regexp"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"
)

const (
	// TagName/TagValue mark every resource group this tool owns. reset
	// only ever deletes groups carrying this tag.
	TagName  = "blazetest"
	TagValue = "true"
)

type TestbedConfig struct {
	Location       string               `json:"location,omitempty"`
	ResourceGroup  ResourceGroupConfig  `json:"resourceGroup,omitempty"`
	StorageAccount StorageAccountConfig `json:"storageAccount,omitempty"`
	Registry       RegistryConfig       `json:"registry,omitempty"`
	Image          ImageConfig          `json:"image,omitempty"`
	Runner         RunnerConfig         `json:"runner,omitempty"`
}

type ResourceGroupConfig struct {
	Name string `json:"name,omitempty"`
	// Tags are applied on top of the ownership tag.
	Tags map[string]string `json:"tags,omitempty"`
}

type StorageAccountConfig struct {
	Name string `json:"name,omitempty"`
	SKU  string `json:"sku,omitempty"`
	Kind string `json:"kind,omitempty"`
}

type RegistryConfig struct {
	Name string `json:"name,omitempty"`
	SKU  string `json:"sku,omitempty"`
}

type ImageConfig struct {
	// Repository is the image name without the registry host, which is
	// only known once the registry exists.
	Repository   string `json:"repository,omitempty"`
	Tag          string `json:"tag,omitempty"`
	BuildContext string `json:"buildContext,omitempty"`
}

type RunnerConfig struct {
	ContainerGroup string            `json:"containerGroup,omitempty"`
	CPU            float64           `json:"cpu,omitempty"`
	MemoryGB       float64           `json:"memoryGB,omitempty"`
	Command        []string          `json:"command,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	// PollInterval is how often the container state is checked while the
	// run is in flight.
	PollInterval *metav1.Duration `json:"pollInterval,omitempty"`
	// Timeout bounds the whole container run, from creation to a
	// terminal state.
	Timeout *metav1.Duration `json:"timeout,omitempty"`
}

func DefaultConfig() TestbedConfig {
	return TestbedConfig{
		Location: "eastus",
		ResourceGroup: ResourceGroupConfig{
			Name: "blazetest-rg",
		},
		StorageAccount: StorageAccountConfig{
			Name: "blazeteststorage123",
			SKU:  "Standard_LRS",
			Kind: "StorageV2",
		},
		Registry: RegistryConfig{
			Name: "blazetestregistry",
			SKU:  "Basic",
		},
		Image: ImageConfig{
			Repository:   "blazetest-runner",
			Tag:          "latest",
			BuildContext: ".",
		},
		Runner: RunnerConfig{
			ContainerGroup: "blazetest-runner",
			CPU:            1,
			MemoryGB:       1.5,
			PollInterval:   &metav1.Duration{Duration: 2 * time.Second},
			Timeout:        &metav1.Duration{Duration: 20 * time.Minute},
		},
	}
}

// LoadConfig reads the YAML config at path and fills any field the file
// leaves out with its default. An empty path yields the pure defaults.
func LoadConfig(path string) (*TestbedConfig, error) {
	config := &TestbedConfig{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(b, config); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %v", path, err)
		}
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *TestbedConfig) applyDefaults() {
	defaults := DefaultConfig()
	if c.Location == "" {
		c.Location = defaults.Location
	}
	if c.ResourceGroup.Name == "" {
		c.ResourceGroup.Name = defaults.ResourceGroup.Name
	}
	if c.StorageAccount.Name == "" {
		c.StorageAccount.Name = defaults.StorageAccount.Name
	}
	if c.StorageAccount.SKU == "" {
		c.StorageAccount.SKU = defaults.StorageAccount.SKU
	}
	if c.StorageAccount.Kind == "" {
		c.StorageAccount.Kind = defaults.StorageAccount.Kind
	}
	if c.Registry.Name == "" {
		c.Registry.Name = defaults.Registry.Name
	}
	if c.Registry.SKU == "" {
		c.Registry.SKU = defaults.Registry.SKU
	}
	if c.Image.Repository == "" {
		c.Image.Repository = defaults.Image.Repository
	}
	if c.Image.Tag == "" {
		c.Image.Tag = defaults.Image.Tag
	}
	if c.Image.BuildContext == "" {
		c.Image.BuildContext = defaults.Image.BuildContext
	}
	if c.Runner.ContainerGroup == "" {
		c.Runner.ContainerGroup = defaults.Runner.ContainerGroup
	}
	if c.Runner.CPU == 0 {
		c.Runner.CPU = defaults.Runner.CPU
	}
	if c.Runner.MemoryGB == 0 {
		c.Runner.MemoryGB = defaults.Runner.MemoryGB
	}
	if c.Runner.PollInterval == nil {
		c.Runner.PollInterval = defaults.Runner.PollInterval
	}
	if c.Runner.Timeout == nil {
		c.Runner.Timeout = defaults.Runner.Timeout
	}
}

// Tags returns the tags for the resource group, always including the
// ownership tag so reset can find what setup created.
func (c *TestbedConfig) Tags() map[string]string {
	tags := map[string]string{TagName: TagValue}
	for k, v := range c.ResourceGroup.Tags {
		tags[k] = v
	}
	return tags
}

var (
	storageAccountNameRegex = regexp.MustCompile(`^[a-z0-9]{3,24}$`)
	registryNameRegex       = regexp.MustCompile(`^[a-zA-Z0-9]{5,50}$`)
)

// Validate reports every problem with the config, not just the first one.
func (c *TestbedConfig) Validate() error {
	var errs []error
	if !storageAccountNameRegex.MatchString(c.StorageAccount.Name) {
		errs = append(errs, fmt.Errorf("storageAccount.name %q must be 3-24 lowercase letters and digits", c.StorageAccount.Name))
	}
	if !registryNameRegex.MatchString(c.Registry.Name) {
		errs = append(errs, fmt.Errorf("registry.name %q must be 5-50 letters and digits", c.Registry.Name))
	}
	if c.Runner.CPU <= 0 {
		errs = append(errs, fmt.Errorf("runner.cpu must be positive, got %v", c.Runner.CPU))
	}
	if c.Runner.MemoryGB <= 0 {
		errs = append(errs, fmt.Errorf("runner.memoryGB must be positive, got %v", c.Runner.MemoryGB))
	}
	if c.Runner.PollInterval != nil && c.Runner.PollInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("runner.pollInterval must be positive, got %s", c.Runner.PollInterval.Duration))
	}
	if c.Runner.Timeout != nil && c.Runner.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("runner.timeout must not be negative, got %s", c.Runner.Timeout.Duration))
	}
	return utilerrors.NewAggregate(errs)
}
