// Package cgroup manages per-container cgroup v1 directories: creating
// them under discovered subsystem mountpoints, writing resource limits,
// attaching a child PID, and tearing them down.
package cgroup

import "log/slog"

// Manager owns zero or more subsystem directories for a single container
// name. Subsystems are constructed in a fixed order (memory, then cpu) and
// destroyed in the reverse order; destruction never returns an error to
// the caller, only logs.
type Manager struct {
	name       string
	subsystems []subsystem
	logger     *slog.Logger
}

// NewManager constructs a Manager, creating a directory (and writing the
// relevant limit files) for every resource configured in cfg. If any
// subsystem fails to construct, every subsystem already constructed for
// this call is rolled back before the error is returned, so a failed
// NewManager call leaves nothing behind.
func NewManager(name string, cfg ResourceConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{name: name, logger: logger}

	if cfg.MemoryLimit != "" {
		s, err := newMemorySubsystem(name, cfg.MemoryLimit)
		if err != nil {
			m.rollback()
			return nil, err
		}
		m.subsystems = append(m.subsystems, s)
	}

	if cfg.CPU != nil {
		s, err := newCPUSubsystem(name, cfg.CPU)
		if err != nil {
			m.rollback()
			return nil, err
		}
		m.subsystems = append(m.subsystems, s)
	}

	return m, nil
}

// Apply attaches pid to every managed subsystem by writing it into that
// subsystem's tasks file. It must be called after the target process
// exists in the kernel.
func (m *Manager) Apply(pid int) error {
	for _, s := range m.subsystems {
		if err := s.apply(pid); err != nil {
			return err
		}
	}
	return nil
}

// Close removes every managed subsystem directory, in reverse of
// construction order. A subsystem still holding attached processes
// returns EBUSY from rmdir; that is logged, not returned, since process
// lifecycle is the caller's responsibility, not this Manager's.
func (m *Manager) Close() {
	for i := len(m.subsystems) - 1; i >= 0; i-- {
		s := m.subsystems[i]
		if err := s.remove(); err != nil {
			m.logger.Warn("cgroup: failed to remove subsystem directory",
				"subsystem", s.name(), "path", s.path(), "error", err)
		}
	}
	m.subsystems = nil
}

func (m *Manager) rollback() {
	for i := len(m.subsystems) - 1; i >= 0; i-- {
		_ = m.subsystems[i].remove()
	}
	m.subsystems = nil
}
