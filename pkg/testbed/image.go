package testbed

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type buildImageStep struct {
	log        *logrus.Entry
	testbed    *Testbed
	cmdBuilder CmdBuilder
	cmdRunner  CmdRunner
}

func (s *buildImageStep) Name() string {
	return "build-and-push-image"
}

func (s *buildImageStep) Run(ctx context.Context) error {
	log := s.log.WithField("step", "testbed: image")
	if s.testbed.LoginServer == "" || s.testbed.Credentials == nil {
		return fmt.Errorf("registry credentials are not set, the registry step has to run first")
	}
	image := s.testbed.ImageRef()

	build := s.cmdBuilder(ctx, "docker", "build", "-t", image, s.testbed.Config.Image.BuildContext)
	log.WithField("image", image).Info("Building image")
	if err := s.cmdRunner(build); err != nil {
		return fmt.Errorf("docker build: %w", err)
	}

	// The password goes through stdin so it never shows up in the
	// process table.
	login := s.cmdBuilder(ctx, "docker", "login", s.testbed.LoginServer,
		"--username", s.testbed.Credentials.Username, "--password-stdin")
	login.Stdin = strings.NewReader(s.testbed.Credentials.Password())
	log.WithField("login_server", s.testbed.LoginServer).Info("Logging in to the registry")
	if err := s.cmdRunner(login); err != nil {
		return fmt.Errorf("docker login: %w", err)
	}

	push := s.cmdBuilder(ctx, "docker", "push", image)
	log.WithField("image", image).Info("Pushing image")
	if err := s.cmdRunner(push); err != nil {
		return fmt.Errorf("docker push: %w", err)
	}
	return nil
}

func NewBuildImageStep(log *logrus.Entry, testbed *Testbed, cmdBuilder CmdBuilder, cmdRunner CmdRunner) *buildImageStep {
	return &buildImageStep{
		log:        log,
		testbed:    testbed,
		cmdBuilder: cmdBuilder,
		cmdRunner:  cmdRunner,
	}
}
