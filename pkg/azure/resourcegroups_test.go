package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCreateOrUpdateResourceGroup(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected method PUT, got %s", r.Method)
		}
		if expected := "/subscriptions/1111-2222/resourcegroups/blazetest-rg"; r.URL.Path != expected {
			t.Errorf("expected path %s, got %s", expected, r.URL.Path)
		}
		var body ResourceGroup
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if diff := cmp.Diff(ResourceGroup{Location: "eastus", Tags: map[string]string{"blazetest": "true"}}, body); diff != "" {
			t.Errorf("request body differs from expected:\n%s", diff)
		}
		fmt.Fprint(w, `{"id": "/subscriptions/1111-2222/resourceGroups/blazetest-rg", "name": "blazetest-rg", "location": "eastus", "tags": {"blazetest": "true"}, "properties": {"provisioningState": "Succeeded"}}`)
	}))

	group, err := client.CreateOrUpdateResourceGroup(context.TODO(), "blazetest-rg", ResourceGroup{
		Location: "eastus",
		Tags:     map[string]string{"blazetest": "true"},
	})
	if err != nil {
		t.Fatalf("failed to create resource group: %v", err)
	}
	expected := &ResourceGroup{
		ID:         "/subscriptions/1111-2222/resourceGroups/blazetest-rg",
		Name:       "blazetest-rg",
		Location:   "eastus",
		Tags:       map[string]string{"blazetest": "true"},
		Properties: &ResourceGroupProperties{ProvisioningState: "Succeeded"},
	}
	if diff := cmp.Diff(expected, group); diff != "" {
		t.Errorf("resource group differs from expected:\n%s", diff)
	}
}

func TestListResourceGroupsFollowsPages(t *testing.T) {
	var requests int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Path {
		case "/subscriptions/1111-2222/resourcegroups":
			if filter := r.URL.Query().Get("$filter"); filter != "tagName eq 'blazetest' and tagValue eq 'true'" {
				t.Errorf("unexpected $filter: %q", filter)
			}
			fmt.Fprintf(w, `{"value": [{"name": "one", "location": "eastus"}], "nextLink": "http://%s/page2?api-version=2021-04-01"}`, r.Host)
		case "/page2":
			fmt.Fprint(w, `{"value": [{"name": "two", "location": "eastus"}, {"name": "three", "location": "westus"}]}`)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	groups, err := client.ListResourceGroups(context.TODO(), TagFilter("blazetest", "true"))
	if err != nil {
		t.Fatalf("failed to list resource groups: %v", err)
	}
	if requests != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
	var names []string
	for _, group := range groups {
		names = append(names, group.Name)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, names); diff != "" {
		t.Errorf("resource group names differ from expected:\n%s", diff)
	}
}

func TestListResourceGroupsEmpty(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": []}`)
	}))
	groups, err := client.ListResourceGroups(context.TODO(), "")
	if err != nil {
		t.Fatalf("failed to list resource groups: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no resource groups, got %d", len(groups))
	}
}

func TestDeleteResourceGroup(t *testing.T) {
	testCases := []struct {
		name          string
		responses     []pollResponse
		expectedError bool
	}{
		{
			name: "deletion completes synchronously",
			responses: []pollResponse{
				{status: http.StatusOK},
			},
		},
		{
			name: "group is already gone",
			responses: []pollResponse{
				{status: http.StatusNotFound, body: `{"error": {"code": "ResourceGroupNotFound", "message": "gone"}}`},
			},
		},
		{
			name: "deletion is polled to completion",
			responses: []pollResponse{
				{status: http.StatusAccepted},
				{status: http.StatusOK, body: `{"status": "InProgress"}`},
				{status: http.StatusNotFound, body: `{"error": {"code": "NotFound", "message": "gone"}}`},
			},
		},
		{
			name: "deletion fails",
			responses: []pollResponse{
				{status: http.StatusAccepted},
				{status: http.StatusOK, body: `{"status": "Failed", "error": {"code": "ScopeLocked", "message": "there is a lock"}}`},
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			quickBackoff(t, 10)
			var requests int
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requests >= len(tc.responses) {
					t.Errorf("unexpected request #%d", requests+1)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				response := tc.responses[requests]
				requests++
				if response.status == http.StatusAccepted {
					w.Header().Set("Azure-AsyncOperation", "http://"+r.Host+"/operations/1")
				}
				w.WriteHeader(response.status)
				fmt.Fprint(w, response.body)
			}))

			err := client.DeleteResourceGroup(context.TODO(), "blazetest-rg")
			if tc.expectedError && err == nil {
				t.Fatal("expected deletion to fail, got no error")
			}
			if !tc.expectedError && err != nil {
				t.Fatalf("failed to delete resource group: %v", err)
			}
			if requests != len(tc.responses) {
				t.Errorf("expected %d requests, got %d", len(tc.responses), requests)
			}
		})
	}
}
