package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	operationSucceeded = "Succeeded"
	operationFailed    = "Failed"
	operationCanceled  = "Canceled"
)

// Consecutive poll failures tolerated before the operation is abandoned.
// A single dropped connection must not fail a provisioning run that the
// service is still happily executing.
const maxConsecutivePollErrors = 3

var operationBackoff = wait.Backoff{
	Duration: 2 * time.Second,
	Factor:   2,
	Jitter:   0.1,
	Steps:    25,
	Cap:      30 * time.Second,
}

// asyncOperation is the status document behind an Azure-AsyncOperation URL.
type asyncOperation struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type waitOptions struct {
	// notFoundOK treats a 404 while polling as completion. Deletions
	// reach this state when the operation endpoint is cleaned up before
	// the final poll lands.
	notFoundOK bool
}

// waitForOperation blocks until the long-running operation behind resp
// reaches a terminal state. Synchronous responses (200/204, or no operation
// header) return immediately. The caller's context bounds the overall wait.
func (c *Client) waitForOperation(ctx context.Context, resp *armResponse, opts waitOptions) error {
	if resp.status == http.StatusOK || resp.status == http.StatusNoContent {
		return nil
	}
	asyncURL := resp.header.Get("Azure-AsyncOperation")
	locationURL := resp.header.Get("Location")
	if asyncURL == "" && locationURL == "" {
		return nil
	}

	pollErrs := 0
	condition := func(ctx context.Context) (bool, error) {
		done, err := c.pollOnce(ctx, asyncURL, locationURL, opts)
		if err != nil {
			var opErr *operationError
			if errors.As(err, &opErr) {
				return false, err
			}
			pollErrs++
			if pollErrs >= maxConsecutivePollErrors {
				return false, fmt.Errorf("poll operation: %w", err)
			}
			c.log.WithError(err).Warn("Transient error while polling operation, retrying")
			return false, nil
		}
		pollErrs = 0
		return done, nil
	}

	if err := wait.ExponentialBackoffWithContext(ctx, operationBackoff, condition); err != nil {
		if wait.Interrupted(err) {
			return fmt.Errorf("timed out waiting for operation to complete: %w", err)
		}
		return err
	}
	return nil
}

// operationError marks a Failed/Canceled terminal status so the poll loop
// can tell it apart from a transient transport problem.
type operationError struct {
	status  string
	code    string
	message string
}

func (e *operationError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("operation %s: %s: %s", e.status, e.code, e.message)
	}
	return fmt.Sprintf("operation %s", e.status)
}

// pollOnce inspects the operation once. Azure-AsyncOperation URLs carry a
// status document; plain Location URLs signal progress through the HTTP
// status alone (202 in flight, anything else 2xx done).
func (c *Client) pollOnce(ctx context.Context, asyncURL, locationURL string, opts waitOptions) (bool, error) {
	if asyncURL != "" {
		var op asyncOperation
		if _, err := c.doURL(ctx, http.MethodGet, asyncURL, nil, &op); err != nil {
			if opts.notFoundOK && IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		switch op.Status {
		case operationSucceeded:
			return true, nil
		case operationFailed, operationCanceled:
			opErr := &operationError{status: op.Status}
			if op.Error != nil {
				opErr.code = op.Error.Code
				opErr.message = op.Error.Message
			}
			return false, opErr
		default:
			return false, nil
		}
	}

	resp, err := c.doURL(ctx, http.MethodGet, locationURL, nil, nil)
	if err != nil {
		if opts.notFoundOK && IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return resp.status != http.StatusAccepted, nil
}
