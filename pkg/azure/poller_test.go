package azure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/wajahatashraf/azure-setup/pkg/testhelper"
)

type pollResponse struct {
	status int
	body   string
}

func TestWaitForOperation(t *testing.T) {
	testCases := []struct {
		name           string
		status         int
		asyncHeader    bool
		locationHeader bool
		opts           waitOptions
		responses      []pollResponse
		expectedPolls  int
		expectedError  error
	}{
		{
			name:   "200 is synchronous completion",
			status: http.StatusOK,
		},
		{
			name:   "204 is synchronous completion",
			status: http.StatusNoContent,
		},
		{
			name:   "201 without operation headers is completion",
			status: http.StatusCreated,
		},
		{
			name:        "async operation succeeds after progress",
			status:      http.StatusAccepted,
			asyncHeader: true,
			responses: []pollResponse{
				{status: http.StatusOK, body: `{"status": "InProgress"}`},
				{status: http.StatusOK, body: `{"status": "InProgress"}`},
				{status: http.StatusOK, body: `{"status": "Succeeded"}`},
			},
			expectedPolls: 3,
		},
		{
			name:        "async operation fails with the service error",
			status:      http.StatusAccepted,
			asyncHeader: true,
			responses: []pollResponse{
				{status: http.StatusOK, body: `{"status": "Failed", "error": {"code": "DeploymentFailed", "message": "quota exceeded"}}`},
			},
			expectedPolls: 1,
			expectedError: fmt.Errorf("operation Failed: DeploymentFailed: quota exceeded"),
		},
		{
			name:        "async operation is canceled",
			status:      http.StatusAccepted,
			asyncHeader: true,
			responses: []pollResponse{
				{status: http.StatusOK, body: `{"status": "Canceled"}`},
			},
			expectedPolls: 1,
			expectedError: fmt.Errorf("operation Canceled"),
		},
		{
			name:           "location polling finishes when the status changes",
			status:         http.StatusAccepted,
			locationHeader: true,
			responses: []pollResponse{
				{status: http.StatusAccepted},
				{status: http.StatusAccepted},
				{status: http.StatusOK},
			},
			expectedPolls: 3,
		},
		{
			name:           "deletion finishes when the operation endpoint is gone",
			status:         http.StatusAccepted,
			locationHeader: true,
			opts:           waitOptions{notFoundOK: true},
			responses: []pollResponse{
				{status: http.StatusAccepted},
				{status: http.StatusNotFound, body: `{"error": {"code": "NotFound", "message": "gone"}}`},
			},
			expectedPolls: 2,
		},
		{
			name:        "transient poll errors are tolerated",
			status:      http.StatusAccepted,
			asyncHeader: true,
			responses: []pollResponse{
				{status: http.StatusInternalServerError, body: `{"error": {"code": "InternalServerError", "message": "boom"}}`},
				{status: http.StatusInternalServerError, body: `{"error": {"code": "InternalServerError", "message": "boom"}}`},
				{status: http.StatusOK, body: `{"status": "Succeeded"}`},
			},
			expectedPolls: 3,
		},
		{
			name:        "persistent poll errors eventually fail the operation",
			status:      http.StatusAccepted,
			asyncHeader: true,
			responses: []pollResponse{
				{status: http.StatusInternalServerError, body: `{"error": {"code": "InternalServerError", "message": "boom"}}`},
				{status: http.StatusInternalServerError, body: `{"error": {"code": "InternalServerError", "message": "boom"}}`},
				{status: http.StatusInternalServerError, body: `{"error": {"code": "InternalServerError", "message": "boom"}}`},
			},
			expectedPolls: 3,
			expectedError: fmt.Errorf("poll operation: InternalServerError (http 500): boom"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			quickBackoff(t, 10)
			var polls int
			client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if polls >= len(tc.responses) {
					t.Errorf("unexpected poll #%d", polls+1)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				response := tc.responses[polls]
				polls++
				w.WriteHeader(response.status)
				fmt.Fprint(w, response.body)
			}))

			header := http.Header{}
			if tc.asyncHeader {
				header.Set("Azure-AsyncOperation", server.URL+"/operations/1")
			}
			if tc.locationHeader {
				header.Set("Location", server.URL+"/resource")
			}

			err := client.waitForOperation(context.TODO(), &armResponse{status: tc.status, header: header}, tc.opts)
			testhelper.Diff(t, "error", err, tc.expectedError, testhelper.EquateErrorMessage)
			if polls != tc.expectedPolls {
				t.Errorf("expected %d polls, got %d", tc.expectedPolls, polls)
			}
		})
	}
}

func TestWaitForOperationTimesOut(t *testing.T) {
	quickBackoff(t, 3)
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "InProgress"}`)
	}))

	header := http.Header{}
	header.Set("Azure-AsyncOperation", server.URL+"/operations/1")
	err := client.waitForOperation(context.TODO(), &armResponse{status: http.StatusAccepted, header: header}, waitOptions{})
	if err == nil {
		t.Fatal("expected an error when the operation never finishes, got none")
	}
	if !strings.Contains(err.Error(), "timed out waiting for operation to complete") {
		t.Errorf("expected a timeout error, got: %v", err)
	}
}

func TestWaitForOperationHonorsCancellation(t *testing.T) {
	quickBackoff(t, 100)
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "InProgress"}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	header := http.Header{}
	header.Set("Azure-AsyncOperation", server.URL+"/operations/1")
	err := client.waitForOperation(ctx, &armResponse{status: http.StatusAccepted, header: header}, waitOptions{})
	if err == nil {
		t.Fatal("expected an error when the context is canceled, got none")
	}
}
