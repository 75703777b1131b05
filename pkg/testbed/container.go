package testbed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/wajahatashraf/azure-setup/pkg/azure"
	"github.com/wajahatashraf/azure-setup/pkg/util"
)

// Consecutive poll failures tolerated while watching the container run.
const maxConsecutivePollErrors = 3

// containerGroupDeleteTimeout bounds the cleanup deletion, which runs on
// its own context so it happens even when the run's context is gone.
const containerGroupDeleteTimeout = 5 * time.Minute

type runContainerStep struct {
	log     *logrus.Entry
	testbed *Testbed
	client  ContainerGroupClient
	out     io.Writer
}

func (s *runContainerStep) Name() string {
	return "run-container"
}

func (s *runContainerStep) Run(ctx context.Context) (ret error) {
	log := s.log.WithField("step", "testbed: container")
	cfg := s.testbed.Config
	name := cfg.Runner.ContainerGroup

	if s.testbed.LoginServer == "" || s.testbed.Credentials == nil {
		return fmt.Errorf("registry credentials are not set, the registry step has to run first")
	}
	image := s.testbed.ImageRef()

	env := make([]azure.EnvironmentVariable, 0, len(cfg.Runner.Env))
	for _, key := range sets.StringKeySet(cfg.Runner.Env).List() {
		env = append(env, azure.EnvironmentVariable{Name: key, Value: cfg.Runner.Env[key]})
	}

	log.WithFields(logrus.Fields{"container_group": name, "image": image}).Info("Creating container group")
	if _, err := s.client.CreateContainerGroup(ctx, cfg.ResourceGroup.Name, name, azure.ContainerGroup{
		Location: cfg.Location,
		Tags:     cfg.Tags(),
		Properties: azure.ContainerGroupProperties{
			OSType:        azure.OSTypeLinux,
			RestartPolicy: azure.RestartPolicyNever,
			ImageRegistryCredentials: []azure.ImageRegistryCredential{{
				Server:   s.testbed.LoginServer,
				Username: s.testbed.Credentials.Username,
				Password: s.testbed.Credentials.Password(),
			}},
			Containers: []azure.Container{{
				Name: name,
				Properties: azure.ContainerProperties{
					Image:                image,
					Command:              cfg.Runner.Command,
					EnvironmentVariables: env,
					Resources: azure.ResourceRequirements{
						Requests: azure.ResourceRequests{
							CPU:        cfg.Runner.CPU,
							MemoryInGB: cfg.Runner.MemoryGB,
						},
					},
				},
			}},
		},
	}); err != nil {
		return err
	}
	defer func() {
		// The group bills while it exists, delete it even when the run
		// failed or was interrupted.
		deleteCtx, cancel := context.WithTimeout(context.Background(), containerGroupDeleteTimeout)
		defer cancel()
		log.WithField("container_group", name).Info("Deleting container group")
		if err := s.client.DeleteContainerGroup(deleteCtx, cfg.ResourceGroup.Name, name); err != nil {
			ret = utilerrors.NewAggregate([]error{ret, err})
		}
	}()

	group, waitErr := s.waitForCompletion(ctx, log)

	logs, logsErr := s.client.ContainerLogs(ctx, cfg.ResourceGroup.Name, name, name, 0)
	if logsErr != nil {
		log.WithError(logsErr).Warn("Could not fetch container logs")
	}

	if waitErr != nil {
		return util.AppendLogToError(waitErr, logs)
	}
	state := runnerContainerState(group, name)
	switch {
	case state != nil && state.State == azure.ContainerStateTerminated:
		if state.ExitCode != 0 {
			return util.AppendLogToError(fmt.Errorf("container %s exited with code %d", name, state.ExitCode), logs)
		}
	case group.Properties.InstanceView != nil && group.Properties.InstanceView.State != azure.ContainerStateSucceeded:
		// The group reached a terminal state without the container ever
		// reporting a termination, e.g. the image could not be pulled.
		msg := fmt.Sprintf("container group %s ended in state %s", name, group.Properties.InstanceView.State)
		if event := lastEvent(group, name); event != "" {
			msg += ": " + event
		}
		return util.AppendLogToError(errors.New(msg), logs)
	}

	if logs != "" {
		fmt.Fprint(s.out, logs)
	}
	log.Info("Container run succeeded")
	return nil
}

// waitForCompletion polls the container group until the runner container
// terminates or the group reaches a terminal state, tolerating a bounded
// number of consecutive poll failures.
func (s *runContainerStep) waitForCompletion(ctx context.Context, log *logrus.Entry) (*azure.ContainerGroup, error) {
	cfg := s.testbed.Config
	name := cfg.Runner.ContainerGroup
	timeout := cfg.Runner.Timeout.Duration

	var current *azure.ContainerGroup
	pollErrs := 0
	condition := func(ctx context.Context) (bool, error) {
		group, err := s.client.GetContainerGroup(ctx, cfg.ResourceGroup.Name, name)
		if err != nil {
			pollErrs++
			if pollErrs >= maxConsecutivePollErrors {
				return false, err
			}
			log.WithError(err).Warn("Transient error while polling the container group, retrying")
			return false, nil
		}
		pollErrs = 0
		current = group
		if state := runnerContainerState(group, name); state != nil {
			log.WithField("state", state.State).Debug("Polled container state")
		}
		return terminated(group, name), nil
	}

	if err := wait.PollUntilContextTimeout(ctx, cfg.Runner.PollInterval.Duration, timeout, true, condition); err != nil {
		if wait.Interrupted(err) {
			return current, fmt.Errorf("container group %s did not finish within %s: %w", name, timeout, err)
		}
		return current, err
	}
	return current, nil
}

// lastEvent returns the message of the most recent event on the runner
// container, falling back to the group's own events. Pull failures only
// ever show up here.
func lastEvent(group *azure.ContainerGroup, container string) string {
	var events []azure.ContainerEvent
	for _, c := range group.Properties.Containers {
		if c.Name == container && c.Properties.InstanceView != nil {
			events = c.Properties.InstanceView.Events
		}
	}
	if len(events) == 0 && group.Properties.InstanceView != nil {
		events = group.Properties.InstanceView.Events
	}
	if len(events) == 0 {
		return ""
	}
	last := events[len(events)-1]
	if last.Message != "" {
		return last.Message
	}
	return last.Name
}

// runnerContainerState digs the named container's current state out of the
// group, nil when the service has not reported one yet.
func runnerContainerState(group *azure.ContainerGroup, container string) *azure.ContainerState {
	for _, c := range group.Properties.Containers {
		if c.Name != container {
			continue
		}
		if view := c.Properties.InstanceView; view != nil {
			return view.CurrentState
		}
	}
	return nil
}

func terminated(group *azure.ContainerGroup, container string) bool {
	if state := runnerContainerState(group, container); state != nil && state.State == azure.ContainerStateTerminated {
		return true
	}
	if view := group.Properties.InstanceView; view != nil {
		switch view.State {
		case azure.ContainerStateSucceeded, azure.ContainerStateFailed, azure.ContainerStateStopped:
			return true
		}
	}
	return false
}

func NewRunContainerStep(log *logrus.Entry, testbed *Testbed, client ContainerGroupClient, out io.Writer) *runContainerStep {
	return &runContainerStep{
		log:     log,
		testbed: testbed,
		client:  client,
		out:     out,
	}
}
