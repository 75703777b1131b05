// Package testbed provisions the blazetest infrastructure: a tagged
// resource group holding a storage account, a container registry and a
// one-shot container instance that runs the test-runner image to
// completion.
package testbed

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/api"
	"github.com/wajahatashraf/azure-setup/pkg/azure"
)

// Step is a single provisioning action. Steps run in order and are
// expected to be idempotent so a failed run can be retried.
type Step interface {
	Run(ctx context.Context) error
	Name() string
}

type CmdBuilder func(ctx context.Context, program string, args ...string) *exec.Cmd
type CmdRunner func(cmd *exec.Cmd) error

// Testbed carries the state the steps build up as they run: the
// configuration they provision from and what the registry step learned
// about the registry.
type Testbed struct {
	Config *api.TestbedConfig

	// LoginServer and Credentials are set by the registry step and
	// consumed by the image and container steps.
	LoginServer string
	Credentials *azure.RegistryCredentials
}

// ImageRef is the full reference of the runner image in the registry.
func (t *Testbed) ImageRef() string {
	return fmt.Sprintf("%s/%s:%s", t.LoginServer, t.Config.Image.Repository, t.Config.Image.Tag)
}

// Run executes the steps in order, stopping at the first failure.
func Run(ctx context.Context, log *logrus.Entry, steps []Step) error {
	for _, step := range steps {
		log.WithField("step", step.Name()).Info("Running step")
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}
