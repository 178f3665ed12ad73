//go:build !darwin

package vm

import (
	"fmt"

	"github.com/vmbridge/vmbridge/internal/session"
)

// stubManager is returned on non-macOS platforms, where no hypervisor
// backend is available.
type stubManager struct{}

// NewManager returns an error-reporting manager on non-macOS platforms.
func NewManager() (Manager, error) {
	return nil, fmt.Errorf("Virtualization.framework is only available on macOS")
}

func (m *stubManager) Create(def *Definition, level DebugLevel) (*session.Session, error) {
	return nil, fmt.Errorf("VM support requires macOS")
}

func (m *stubManager) Start(sess *session.Session) (Instance, error) {
	return nil, fmt.Errorf("VM support requires macOS")
}

func (m *stubManager) Stop(id string) error {
	return fmt.Errorf("VM support requires macOS")
}

func (m *stubManager) List() ([]*session.Session, error) {
	return []*session.Session{}, nil
}

func (m *stubManager) WaitForStop(id string) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
