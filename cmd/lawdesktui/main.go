package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/tui"
	"github.com/matheus3301/lawdesk/internal/workspace"
)

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace name (overrides config default)")
	callerFlag := flag.String("caller", os.Getenv("USER"), "caller id sent to the daemon")
	roleFlag := flag.String("role", "admin", "caller role sent to the daemon")
	noStart := flag.Bool("no-start", false, "do not start the daemon if it is not running")
	flag.Parse()

	name := workspace.Resolve(*workspaceFlag)
	if err := workspace.ValidateName(name); err != nil {
		fail(err)
	}
	socketPath := workspace.SocketPath(name)

	c, err := api.New(socketPath)
	if err != nil {
		fail(fmt.Errorf("connect to daemon: %w", err))
	}
	defer func() { _ = c.Close() }()

	if !probeDaemon(c) {
		if *noStart {
			fail(fmt.Errorf("daemon not running for workspace %q", name))
		}
		fmt.Fprintf(os.Stderr, "daemon not running for workspace %q, starting...\n", name)
		if err := startDaemon(name); err != nil {
			fail(fmt.Errorf("start daemon: %w", err))
		}
		if err := waitForDaemon(c, 10*time.Second); err != nil {
			fail(err)
		}
	}

	app := tui.NewApp(c, *callerFlag, *roleFlag)
	if err := app.Run(); err != nil {
		fail(err)
	}
}

func probeDaemon(c *api.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.GetStatus(ctx, &api.GetStatusRequest{})
	return err == nil
}

func startDaemon(name string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	daemon := filepath.Join(filepath.Dir(executable), "lawdeskd")
	if _, err := os.Stat(daemon); err != nil {
		daemon = "lawdeskd"
	}

	cmd := exec.Command(daemon, "-workspace", name)
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls GetStatus until the daemon answers or timeout passes.
func waitForDaemon(c *api.Client, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = timeout
	return backoff.Retry(func() error {
		if probeDaemon(c) {
			return nil
		}
		return errors.New("daemon did not become ready")
	}, b)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
