package util

import (
	"fmt"
	"strings"
)

// AppendLogToError decorates an error with the log output of the failed
// workload so callers surface both. The original error stays unwrappable.
func AppendLogToError(err error, log string) error {
	log = strings.TrimSpace(log)
	if len(log) == 0 {
		return err
	}
	return fmt.Errorf("%w\n\n%s", err, log)
}
