package util

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SocatManager manages lifecycle of socat-created virtual serial pairs, used to run
// the node against the frame simulator without hardware.
type SocatManager struct {
	mu     sync.Mutex
	cmds   []*exec.Cmd
	links  []string
	pipes  []io.Closer
	closed bool
	log    *log.Entry
}

// NewSocatManager initializes an empty manager.
func NewSocatManager() *SocatManager {
	return &SocatManager{log: log.WithField("component", "virt-serial")}
}

// PairArgs returns the socat arguments linking two raw PTYs at left and right.
func PairArgs(left, right string) []string {
	return []string{
		"-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	}
}

// CreatePair starts a socat process that links two PTYs (bidirectional) and waits
// up to wait for both links to appear.
func (m *SocatManager) CreatePair(left, right string, wait time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := exec.Command("socat", PairArgs(left, right)...)
	w := m.log.WriterLevel(log.DebugLevel)
	cmd.Stdout = w
	cmd.Stderr = w
	m.pipes = append(m.pipes, w)

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start socat")
	}
	m.log.Infof("started socat (pid=%d): %s <-> %s", cmd.Process.Pid, left, right)

	m.cmds = append(m.cmds, cmd)
	m.links = append(m.links, left, right)

	deadline := time.Now().Add(wait)
	for !exists(left) || !exists(right) {
		if time.Now().After(deadline) {
			return errors.Errorf("socat links %s, %s not ready after %s", left, right, wait)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Cleanup stops all socat processes and removes created links.
func (m *SocatManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, cmd := range m.cmds {
		if cmd.Process != nil {
			m.log.Debugf("killing socat pid=%d", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}
	}

	for _, path := range m.links {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
			m.log.Debugf("removed link: %s", path)
		}
	}

	for _, p := range m.pipes {
		_ = p.Close()
	}

	m.log.Infof("cleanup complete (%d pairs)", len(m.links)/2)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
