package testbed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wajahatashraf/azure-setup/pkg/api"
	"github.com/wajahatashraf/azure-setup/pkg/azure"
)

// TeardownOptions control how Teardown finds and confirms the deletions.
type TeardownOptions struct {
	// Confirmed skips the interactive prompt.
	Confirmed bool
	In        io.Reader
	Out       io.Writer
}

// Teardown deletes every resource group the testbed tagged as its own.
// Unless already confirmed, it lists the groups and asks before deleting.
func Teardown(ctx context.Context, log *logrus.Entry, client TeardownClient, opts TeardownOptions) error {
	groups, err := client.ListResourceGroups(ctx, azure.TagFilter(api.TagName, api.TagValue))
	if err != nil {
		return fmt.Errorf("list resource groups: %w", err)
	}
	if len(groups) == 0 {
		log.Info("No testbed resource groups found, nothing to delete")
		return nil
	}

	names := sets.NewString()
	for _, group := range groups {
		names.Insert(group.Name)
	}
	sorted := names.List()

	if !opts.Confirmed {
		fmt.Fprintf(opts.Out, "About to delete %d resource group(s): %s\nProceed? [y/N]: ", len(sorted), strings.Join(sorted, ", "))
		if !readConfirmation(opts.In) {
			log.Info("Aborted, nothing was deleted")
			return nil
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range sorted {
		name := name
		eg.Go(func() error {
			groupLog := log.WithField("resource_group", name)
			groupLog.Info("Deleting resource group")
			if err := client.DeleteResourceGroup(ctx, name); err != nil {
				return fmt.Errorf("delete resource group %s: %w", name, err)
			}
			groupLog.Info("Resource group deleted")
			return nil
		})
	}
	return eg.Wait()
}

func readConfirmation(in io.Reader) bool {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
