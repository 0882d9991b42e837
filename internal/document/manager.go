package document

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"pdfmark/internal/config"
	"pdfmark/internal/library"
)

// Manager owns the library database and the set of open sessions. It also
// watches open files so edits from outside the program are noticed.
type Manager struct {
	mu       sync.Mutex
	cfg      *config.Config
	lib      *library.Library
	log      logrus.FieldLogger
	watcher  *fsnotify.Watcher
	sessions map[string]*Session
	done     chan struct{}
}

// NewManager opens the library at the configured path and starts the file
// watcher.
func NewManager(cfg *config.Config, log logrus.FieldLogger) (*Manager, error) {
	lib, err := library.Open(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		lib:      lib,
		log:      log,
		watcher:  watcher,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go m.watch()
	return m, nil
}

// Library exposes the underlying library for listing operations.
func (m *Manager) Library() *library.Library { return m.lib }

// Open returns the session for path, creating it on first use.
func (m *Manager) Open(path string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[path]; ok {
		return s, nil
	}

	s, err := open(m.lib, path, m.cfg.Render.CacheBytes, m.log)
	if err != nil {
		return nil, err
	}
	if err := m.watcher.Add(path); err != nil {
		m.log.WithError(err).WithField("doc", path).Warn("cannot watch file")
	}
	m.sessions[path] = s
	return s, nil
}

// CloseSession saves and releases one session.
func (m *Manager) CloseSession(path string) error {
	m.mu.Lock()
	s, ok := m.sessions[path]
	if ok {
		delete(m.sessions, path)
		m.watcher.Remove(path)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// Close saves every open session and shuts the library down.
func (m *Manager) Close() error {
	close(m.done)
	m.watcher.Close()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for path, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", path, err)
		}
	}
	if err := m.lib.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (m *Manager) watch() {
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			m.mu.Lock()
			s := m.sessions[ev.Name]
			m.mu.Unlock()
			if s != nil {
				s.markStale()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.WithError(err).Warn("file watcher error")
		}
	}
}
