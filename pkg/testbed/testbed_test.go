package testbed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/wajahatashraf/azure-setup/pkg/api"
	"github.com/wajahatashraf/azure-setup/pkg/testbed"
)

func testConfig() *api.TestbedConfig {
	return &api.TestbedConfig{
		Location:       "eastus",
		ResourceGroup:  api.ResourceGroupConfig{Name: "blazetest-rg"},
		StorageAccount: api.StorageAccountConfig{Name: "blazeteststorage123", SKU: "Standard_LRS", Kind: "StorageV2"},
		Registry:       api.RegistryConfig{Name: "blazetestregistry", SKU: "Basic"},
		Image:          api.ImageConfig{Repository: "blazetest-runner", Tag: "latest", BuildContext: "."},
		Runner: api.RunnerConfig{
			ContainerGroup: "blazetest-runner",
			CPU:            1,
			MemoryGB:       1.5,
			PollInterval:   &metav1.Duration{Duration: time.Millisecond},
			Timeout:        &metav1.Duration{Duration: time.Second},
		},
	}
}

type fakeStep struct {
	name string
	err  error
	ran  *[]string
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Run(ctx context.Context) error {
	*s.ran = append(*s.ran, s.name)
	return s.err
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name    string
		errs    map[string]error
		wantRan []string
		wantErr error
	}{
		{
			name:    "all steps run in order",
			wantRan: []string{"first", "second", "third"},
		},
		{
			name:    "a failing step stops the run and names itself",
			errs:    map[string]error{"second": errors.New("kaboom")},
			wantRan: []string{"first", "second"},
			wantErr: errors.New("second: kaboom"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var ran []string
			var steps []testbed.Step
			for _, name := range []string{"first", "second", "third"} {
				steps = append(steps, &fakeStep{name: name, err: tc.errs[name], ran: &ran})
			}

			err := testbed.Run(context.TODO(), logrus.NewEntry(logrus.StandardLogger()), steps)

			if err != nil && tc.wantErr == nil {
				t.Fatalf("want err nil but got: %v", err)
			}
			if err == nil && tc.wantErr != nil {
				t.Fatalf("want err %v but nil", tc.wantErr)
			}
			if err != nil && tc.wantErr != nil && tc.wantErr.Error() != err.Error() {
				t.Fatalf("expect error %q but got %q", tc.wantErr.Error(), err.Error())
			}
			if len(ran) != len(tc.wantRan) {
				t.Fatalf("expected steps %v to run, ran %v", tc.wantRan, ran)
			}
			for i := range ran {
				if ran[i] != tc.wantRan[i] {
					t.Fatalf("expected steps %v to run, ran %v", tc.wantRan, ran)
				}
			}
		})
	}
}

func TestImageRef(t *testing.T) {
	tb := &testbed.Testbed{Config: testConfig(), LoginServer: "blazetestregistry.azurecr.io"}
	if ref, expected := tb.ImageRef(), "blazetestregistry.azurecr.io/blazetest-runner:latest"; ref != expected {
		t.Errorf("expected image ref %q, got %q", expected, ref)
	}
}
