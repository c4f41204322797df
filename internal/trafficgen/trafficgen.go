// Package trafficgen implements the ping-like traffic generator adapter
// from spec §4.K: a short-lived child process started at warmup-begin and
// stopped after measurement-end, escalating SIGINT -> SIGTERM -> SIGKILL
// with the 200ms/100ms gaps spec §5 names. The original C implementation
// has no subprocess code of its own to generalize from (main.c only
// registers SIGINT/SIGTERM for its own shutdown); this is built fresh in
// that same signal-driven shutdown idiom, translated to os/exec.Cmd plus
// syscall.Kill the way a Go CLI manages a subprocess it doesn't own.
package trafficgen

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// sigintGap and sigtermGap are the escalation waits from spec §5.
const (
	sigintGap  = 200 * time.Millisecond
	sigtermGap = 100 * time.Millisecond
)

// Generator is a ping-like external traffic generator. It satisfies
// controller.TrafficGenerator.
type Generator struct {
	mode   string
	target string
	rate   int

	cmd *exec.Cmd
}

// New builds a Generator for the given mode. The only mode spec §4.K
// defines is "ping"; New returns nil when mode is empty, signaling no
// traffic generator is configured.
func New(mode, target string, rate int) *Generator {
	if mode == "" {
		return nil
	}
	return &Generator{mode: mode, target: target, rate: rate}
}

// Start launches the generator process. A failure here is never fatal to
// the caller's run (spec §4.G): the caller logs it as a warning and
// continues.
func (g *Generator) Start() error {
	if g == nil {
		return nil
	}
	if g.mode != "ping" {
		return fmt.Errorf("trafficgen: unsupported mode %q", g.mode)
	}
	if g.target == "" {
		return fmt.Errorf("trafficgen: target is required for mode %q", g.mode)
	}

	args := pingArgs(g.target, g.rate)
	cmd := exec.Command("ping", args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("trafficgen: start ping: %w", err)
	}
	g.cmd = cmd
	return nil
}

// pingArgs builds a ping invocation at the requested packets-per-second
// rate. ping's -i flag takes a floating-point interval in seconds, so a
// rate <= 0 falls back to ping's own default pacing (one packet/sec).
func pingArgs(target string, rate int) []string {
	if rate <= 0 {
		return []string{target}
	}
	interval := 1.0 / float64(rate)
	return []string{"-i", fmt.Sprintf("%.3f", interval), target}
}

// Stop escalates SIGINT -> SIGTERM -> SIGKILL with the gaps spec §5 names,
// returning once the process has exited or been killed. Safe to call on a
// Generator whose Start never ran or failed.
func (g *Generator) Stop() {
	if g == nil || g.cmd == nil || g.cmd.Process == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = g.cmd.Wait()
		close(done)
	}()

	if exited(done, 0) {
		return
	}

	_ = g.cmd.Process.Signal(syscall.SIGINT)
	if exited(done, sigintGap) {
		return
	}

	_ = g.cmd.Process.Signal(syscall.SIGTERM)
	if exited(done, sigtermGap) {
		return
	}

	_ = g.cmd.Process.Kill()
	<-done
}

func exited(done <-chan struct{}, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
