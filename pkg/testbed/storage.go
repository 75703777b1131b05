package testbed

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
)

type ensureStorageAccountStep struct {
	log     *logrus.Entry
	testbed *Testbed
	client  StorageClient
}

func (s *ensureStorageAccountStep) Name() string {
	return "ensure-storage-account"
}

func (s *ensureStorageAccountStep) Run(ctx context.Context) error {
	log := s.log.WithField("step", "testbed: storage account")
	cfg := s.testbed.Config
	name := cfg.StorageAccount.Name

	// Storage account names are unique across all of Azure, so probe the
	// global namespace before trying to create.
	availability, err := s.client.CheckStorageAccountName(ctx, name)
	if err != nil {
		return err
	}
	if !availability.NameAvailable {
		if availability.Reason == azure.NameReasonAlreadyExists {
			if _, err := s.client.GetStorageAccount(ctx, cfg.ResourceGroup.Name, name); err == nil {
				log.Warn("Storage account exists already, skipping")
				return nil
			} else if !azure.IsNotFound(err) {
				return err
			}
		}
		detail := availability.Message
		if detail == "" {
			detail = availability.Reason
		}
		return fmt.Errorf("storage account name %s is not available: %s", name, detail)
	}

	log.WithField("storage_account", name).Info("Creating storage account")
	account, err := s.client.CreateStorageAccount(ctx, cfg.ResourceGroup.Name, name, azure.StorageAccountCreateParameters{
		Location: cfg.Location,
		SKU:      azure.SKU{Name: cfg.StorageAccount.SKU},
		Kind:     cfg.StorageAccount.Kind,
		Tags:     cfg.Tags(),
	})
	if err != nil {
		return err
	}
	log.WithField("storage_account", account.Name).Info("Storage account ready")
	return nil
}

func NewEnsureStorageAccountStep(log *logrus.Entry, testbed *Testbed, client StorageClient) *ensureStorageAccountStep {
	return &ensureStorageAccountStep{
		log:     log,
		testbed: testbed,
		client:  client,
	}
}
