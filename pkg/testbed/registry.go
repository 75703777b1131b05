package testbed

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
	"github.com/wajahatashraf/azure-setup/pkg/secrets"
)

type ensureRegistryStep struct {
	log     *logrus.Entry
	testbed *Testbed
	client  RegistryClient
	censor  *secrets.DynamicCensor
}

func (s *ensureRegistryStep) Name() string {
	return "ensure-registry"
}

func (s *ensureRegistryStep) Run(ctx context.Context) error {
	log := s.log.WithField("step", "testbed: registry")
	cfg := s.testbed.Config
	name := cfg.Registry.Name

	log.WithField("registry", name).Info("Creating container registry")
	registry, err := s.client.CreateRegistry(ctx, cfg.ResourceGroup.Name, name, azure.RegistryCreateParameters{
		Location:   cfg.Location,
		SKU:        azure.SKU{Name: cfg.Registry.SKU},
		Tags:       cfg.Tags(),
		Properties: azure.RegistryProperties{AdminUserEnabled: true},
	})
	if err != nil {
		return err
	}
	if registry.Properties.LoginServer == "" {
		return fmt.Errorf("registry %s has no login server", name)
	}
	s.testbed.LoginServer = registry.Properties.LoginServer

	log.Info("Fetching registry credentials")
	creds, err := s.client.ListRegistryCredentials(ctx, cfg.ResourceGroup.Name, name)
	if err != nil {
		return err
	}
	if s.censor != nil {
		for _, password := range creds.Passwords {
			s.censor.AddSecrets(password.Value)
		}
	}
	s.testbed.Credentials = creds

	log.WithField("login_server", registry.Properties.LoginServer).Info("Registry ready")
	return nil
}

func NewEnsureRegistryStep(log *logrus.Entry, testbed *Testbed, client RegistryClient, censor *secrets.DynamicCensor) *ensureRegistryStep {
	return &ensureRegistryStep{
		log:     log,
		testbed: testbed,
		client:  client,
		censor:  censor,
	}
}
