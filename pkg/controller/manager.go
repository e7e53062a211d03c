package controller

import (
	"context"
	"sync"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxIdle is the default number of unused controllers kept alive.
const DefaultMaxIdle = 64

// ManagerOpts holds manager options
type ManagerOpts struct {
	Logger  zerolog.Logger
	MaxIdle int
}

// Manager hands out one controller per mount point. Controllers which are
// in use or have unsynced changes are pinned; unused ones are kept in an LRU
// cache and dropped on eviction together with their reference on the parent
// controller.
type Manager struct {
	logger zerolog.Logger

	// mu guards entries and every access to idle, so eviction callbacks
	// always run with mu held.
	mu      sync.Mutex
	entries map[string]*entry
	idle    *lru.Cache[string, *entry]
}

type entry struct {
	key    string
	ctrl   managed
	depth  int
	refs   int
	parent *entry
}

// NewManager creates a new controller manager
func NewManager(opts ManagerOpts) *Manager {
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	m := &Manager{
		logger:  opts.Logger,
		entries: make(map[string]*entry),
	}
	m.idle, _ = lru.NewWithEvict[string, *entry](opts.MaxIdle, m.evicted)
	return m
}

// Controller returns the controller for mp with the driver which d has for
// its scheme. The controller stays pinned until release is called.
func (m *Manager) Controller(d *detector.ArchiveDetector, mp *vfs.MountPoint) (Controller, func(), error) {
	if err := checkDrivers(d, mp); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.acquire(d, mp)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	return e.ctrl, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.release(e)
		})
	}, nil
}

// checkDrivers returns an UnknownSchemeError unless d has a suitable driver
// for mp and every mount point it is nested in. Cached controllers are
// shared by mount point, so this is checked on every call.
func checkDrivers(d *detector.ArchiveDetector, mp *vfs.MountPoint) error {
	for ; mp != nil; mp = mp.Parent() {
		c, _ := d.Driver(mp.Scheme())
		var ok bool
		if mp.IsOpaque() {
			_, ok = c.(ArchiveDriver)
			ok = ok && c.IsArchiveDriver()
		} else {
			_, ok = c.(NativeDriver)
		}
		if !ok {
			return &UnknownSchemeError{Scheme: mp.Scheme()}
		}
	}
	return nil
}

func (m *Manager) acquire(d *detector.ArchiveDetector, mp *vfs.MountPoint) (*entry, error) {
	key := mp.URI()
	if e, ok := m.entries[key]; ok {
		e.refs++
		m.idle.Remove(key)
		return e, nil
	}

	c, _ := d.Driver(mp.Scheme())
	e := &entry{key: key, depth: mp.Depth(), refs: 1}
	if !mp.IsOpaque() {
		nd, ok := c.(NativeDriver)
		if !ok {
			return nil, &UnknownSchemeError{Scheme: mp.Scheme()}
		}
		e.ctrl = newNativeController(mp, nd.Fs())
	} else {
		ad, ok := c.(ArchiveDriver)
		if !ok || !ad.IsArchiveDriver() {
			return nil, &UnknownSchemeError{Scheme: mp.Scheme()}
		}
		pmp, pe := mp.Path().Mount()
		parent, err := m.acquire(d, pmp)
		if err != nil {
			return nil, err
		}
		e.parent = parent
		e.ctrl = newArchiveController(mp, ad, parent.ctrl, pe, m.logger)
	}
	m.entries[key] = e
	m.logger.Debug().Str("mount", key).Msg("Controller created")
	return e, nil
}

func (m *Manager) release(e *entry) {
	e.refs--
	if e.refs > 0 || e.ctrl.dirty() {
		return
	}
	m.idle.Add(e.key, e)
}

func (m *Manager) evicted(key string, e *entry) {
	if e.refs > 0 || e.ctrl.dirty() || m.entries[key] != e {
		return
	}
	delete(m.entries, key)
	m.logger.Debug().Str("mount", key).Msg("Controller dropped")
	if e.parent != nil {
		m.release(e.parent)
	}
}

// Len returns the number of live controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sync writes all pending changes, deepest archives first so that each
// level sees the changes of the levels it contains. Controllers of the same
// depth are synced concurrently.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	maxDepth := 0
	for _, e := range m.entries {
		if e.depth > maxDepth {
			maxDepth = e.depth
		}
	}
	m.mu.Unlock()

	for depth := maxDepth; depth > 0; depth-- {
		m.mu.Lock()
		var ctrls []Controller
		for _, e := range m.entries {
			if e.depth == depth && e.ctrl.dirty() {
				ctrls = append(ctrls, e.ctrl)
			}
		}
		m.mu.Unlock()

		eg, ectx := errgroup.WithContext(ctx)
		for _, c := range ctrls {
			func(c Controller) {
				eg.Go(func() error {
					return c.Sync(ectx)
				})
			}(c)
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.refs == 0 && !e.ctrl.dirty() && !m.idle.Contains(key) {
			m.idle.Add(key, e)
		}
	}
	return nil
}

// Umount syncs all pending changes and drops all unused controllers. The
// manager remains usable.
func (m *Manager) Umount(ctx context.Context) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// dropping a controller may release its parent into the cache
	for m.idle.Len() > 0 {
		m.idle.Purge()
	}
	return nil
}
