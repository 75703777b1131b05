package testbed

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
)

type ensureResourceGroupStep struct {
	log     *logrus.Entry
	testbed *Testbed
	client  ResourceGroupClient
}

func (s *ensureResourceGroupStep) Name() string {
	return "ensure-resource-group"
}

func (s *ensureResourceGroupStep) Run(ctx context.Context) error {
	log := s.log.WithField("step", "testbed: resource group")
	cfg := s.testbed.Config

	log.WithField("resource_group", cfg.ResourceGroup.Name).Info("Creating resource group")
	group, err := s.client.CreateOrUpdateResourceGroup(ctx, cfg.ResourceGroup.Name, azure.ResourceGroup{
		Location: cfg.Location,
		Tags:     cfg.Tags(),
	})
	if err != nil {
		return err
	}
	log.WithField("resource_group", group.Name).Info("Resource group ready")
	return nil
}

func NewEnsureResourceGroupStep(log *logrus.Entry, testbed *Testbed, client ResourceGroupClient) *ensureResourceGroupStep {
	return &ensureResourceGroupStep{
		log:     log,
		testbed: testbed,
		client:  client,
	}
}
