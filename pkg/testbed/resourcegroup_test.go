package testbed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
	"github.com/wajahatashraf/azure-setup/pkg/testbed"
	"github.com/wajahatashraf/azure-setup/pkg/testhelper"
)

type fakeResourceGroupClient struct {
	onCreateOrUpdate func(name string, group azure.ResourceGroup) (*azure.ResourceGroup, error)
}

func (f *fakeResourceGroupClient) CreateOrUpdateResourceGroup(ctx context.Context, name string, group azure.ResourceGroup) (*azure.ResourceGroup, error) {
	return f.onCreateOrUpdate(name, group)
}

func TestEnsureResourceGroup(t *testing.T) {
	var createdName string
	var created azure.ResourceGroup
	client := &fakeResourceGroupClient{
		onCreateOrUpdate: func(name string, group azure.ResourceGroup) (*azure.ResourceGroup, error) {
			createdName = name
			created = group
			return &azure.ResourceGroup{Name: name, Location: group.Location, Tags: group.Tags}, nil
		},
	}
	tb := &testbed.Testbed{Config: testConfig()}
	tb.Config.ResourceGroup.Tags = map[string]string{"team": "blaze"}

	step := testbed.NewEnsureResourceGroupStep(logrus.NewEntry(logrus.StandardLogger()), tb, client)
	if err := step.Run(context.TODO()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if createdName != "blazetest-rg" {
		t.Errorf("expected resource group blazetest-rg, got %s", createdName)
	}
	if created.Location != "eastus" {
		t.Errorf("expected location eastus, got %s", created.Location)
	}
	expectedTags := map[string]string{"blazetest": "true", "team": "blaze"}
	testhelper.Diff(t, "tags", expectedTags, created.Tags)
}

func TestEnsureResourceGroupPropagatesErrors(t *testing.T) {
	client := &fakeResourceGroupClient{
		onCreateOrUpdate: func(string, azure.ResourceGroup) (*azure.ResourceGroup, error) {
			return nil, errors.New("create resource group blazetest-rg: http 403: forbidden")
		},
	}
	step := testbed.NewEnsureResourceGroupStep(logrus.NewEntry(logrus.StandardLogger()), &testbed.Testbed{Config: testConfig()}, client)

	err := step.Run(context.TODO())
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if expected := "create resource group blazetest-rg: http 403: forbidden"; err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}
