package testbed_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
	"github.com/wajahatashraf/azure-setup/pkg/secrets"
	"github.com/wajahatashraf/azure-setup/pkg/testbed"
)

type fakeRegistryClient struct {
	onCreate   func() (*azure.Registry, error)
	onListCred func() (*azure.RegistryCredentials, error)

	created *azure.RegistryCreateParameters
}

func (f *fakeRegistryClient) CreateRegistry(ctx context.Context, resourceGroup, name string, params azure.RegistryCreateParameters) (*azure.Registry, error) {
	f.created = &params
	return f.onCreate()
}

func (f *fakeRegistryClient) ListRegistryCredentials(ctx context.Context, resourceGroup, name string) (*azure.RegistryCredentials, error) {
	return f.onListCred()
}

func TestEnsureRegistry(t *testing.T) {
	client := &fakeRegistryClient{
		onCreate: func() (*azure.Registry, error) {
			return &azure.Registry{
				Name:       "blazetestregistry",
				Properties: azure.RegistryProperties{LoginServer: "blazetestregistry.azurecr.io"},
			}, nil
		},
		onListCred: func() (*azure.RegistryCredentials, error) {
			return &azure.RegistryCredentials{
				Username:  "blazetestregistry",
				Passwords: []azure.RegistryPassword{{Name: "password", Value: "hunter2"}},
			}, nil
		},
	}
	censor := secrets.NewDynamicCensor()
	tb := &testbed.Testbed{Config: testConfig()}

	step := testbed.NewEnsureRegistryStep(logrus.NewEntry(logrus.StandardLogger()), tb, client, &censor)
	if err := step.Run(context.TODO()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !client.created.Properties.AdminUserEnabled {
		t.Error("expected the admin user to be enabled")
	}
	if client.created.SKU.Name != "Basic" {
		t.Errorf("expected SKU Basic, got %s", client.created.SKU.Name)
	}
	if tb.LoginServer != "blazetestregistry.azurecr.io" {
		t.Errorf("expected the login server on the testbed, got %q", tb.LoginServer)
	}
	if tb.Credentials == nil || tb.Credentials.Password() != "hunter2" {
		t.Errorf("expected the credentials on the testbed, got %+v", tb.Credentials)
	}
	censored := []byte("login with hunter2")
	censor.Censor(&censored)
	if masked := string(censored); strings.Contains(masked, "hunter2") {
		t.Errorf("expected the password to be registered with the censor, got %q", masked)
	}
}

func TestEnsureRegistryFailures(t *testing.T) {
	testCases := []struct {
		name       string
		onCreate   func() (*azure.Registry, error)
		onListCred func() (*azure.RegistryCredentials, error)
		wantErr    error
	}{
		{
			name: "create fails",
			onCreate: func() (*azure.Registry, error) {
				return nil, errors.New("create registry blazetestregistry: http 400: bad request")
			},
			wantErr: errors.New("create registry blazetestregistry: http 400: bad request"),
		},
		{
			name: "no login server reported",
			onCreate: func() (*azure.Registry, error) {
				return &azure.Registry{Name: "blazetestregistry"}, nil
			},
			wantErr: errors.New("registry blazetestregistry has no login server"),
		},
		{
			name: "credentials listing fails",
			onCreate: func() (*azure.Registry, error) {
				return &azure.Registry{Properties: azure.RegistryProperties{LoginServer: "blazetestregistry.azurecr.io"}}, nil
			},
			onListCred: func() (*azure.RegistryCredentials, error) {
				return nil, errors.New("list credentials for registry blazetestregistry: http 500: boom")
			},
			wantErr: errors.New("list credentials for registry blazetestregistry: http 500: boom"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeRegistryClient{onCreate: tc.onCreate, onListCred: tc.onListCred}
			step := testbed.NewEnsureRegistryStep(logrus.NewEntry(logrus.StandardLogger()), &testbed.Testbed{Config: testConfig()}, client, nil)

			err := step.Run(context.TODO())
			if err == nil {
				t.Fatalf("want err %v but nil", tc.wantErr)
			}
			if tc.wantErr.Error() != err.Error() {
				t.Fatalf("expect error %q but got %q", tc.wantErr.Error(), err.Error())
			}
		})
	}
}
