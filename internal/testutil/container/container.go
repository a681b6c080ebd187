// Package container runs throwaway docker containers for integration tests.
package container

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Container describes a single-port service image started with `docker run`.
type Container struct {
	Name          string
	Image         string
	HostPort      string
	ContainerPort string
	Env           []string
	ReadyTimeout  time.Duration
	// Ready is polled until it returns nil or ReadyTimeout elapses.
	Ready func(addr string) error

	mu       sync.Mutex
	started  bool
	setupErr error
}

// Addr is the host:port the service is published on.
func (c *Container) Addr() string { return "127.0.0.1:" + c.HostPort }

// Setup starts the container once and waits for readiness. Subsequent calls
// return the first result.
func (c *Container) Setup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.setupErr != nil {
		return c.setupErr
	}
	if _, err := exec.LookPath("docker"); err != nil {
		c.setupErr = fmt.Errorf("docker executable not found: %w", err)
		return c.setupErr
	}
	_ = c.stop()
	if err := runDocker(c.runArgs()...); err != nil {
		c.setupErr = err
		return err
	}
	if err := c.waitReady(); err != nil {
		_ = c.stop()
		c.setupErr = err
		return err
	}
	c.started = true
	return nil
}

// Teardown stops the container if Setup started it.
func (c *Container) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return c.setupErr
	}
	c.started = false
	return c.stop()
}

func (c *Container) runArgs() []string {
	args := []string{"run", "-d", "--rm", "--name", c.Name, "-p", c.HostPort + ":" + c.ContainerPort}
	for _, kv := range c.Env {
		args = append(args, "-e", kv)
	}
	return append(args, c.Image)
}

func (c *Container) waitReady() error {
	if c.Ready == nil {
		return nil
	}
	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = c.Ready(c.Addr()); lastErr == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.Join(fmt.Errorf("%s container did not become ready in time", c.Name), lastErr)
}

func (c *Container) stop() error {
	output, err := exec.Command("docker", "stop", c.Name).CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func runDocker(args ...string) error {
	output, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}
