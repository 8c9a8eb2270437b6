package config

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store holds the live configuration behind a mutex and supports hot
// reloading from disk. Readers call Get(); the reload loop calls Reload().
type Store struct {
	mu   sync.RWMutex
	cur  *Config
	path string
}

// NewStore builds a Store from an already-loaded configuration.
func NewStore(path string, initial *Config) *Store {
	return &Store{cur: initial, path: path}
}

// Get returns the currently active configuration. Callers must not mutate
// the returned value; treat it as immutable.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload re-reads the config file and swaps in whichever fields are safe to
// change live. Fields that require a restart are logged but left untouched.
func (s *Store) Reload() error {
	next, err := Load(s.path)
	if err != nil {
		log.Printf("[config] reload failed, keeping previous configuration: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.cur.Clone()
	if merged.Server.ListenAddress != next.Server.ListenAddress {
		log.Printf("[config] server.listen_address changed on disk but requires a restart; ignoring")
	}
	merged.Server.AuthEnabled = next.Server.AuthEnabled
	merged.Server.Realm = next.Server.Realm
	merged.WsSecurity = next.WsSecurity
	merged.Digest = next.Digest
	merged.RateLimit = next.RateLimit
	merged.BruteForce = next.BruteForce
	merged.Memory = next.Memory
	merged.HTTP = next.HTTP

	s.cur = merged
	log.Printf("[config] reloaded from %s", s.path)
	return nil
}

// Watch starts a background fsnotify watcher on the config file. If the
// watcher cannot be created or cannot watch the file, a 60-second poll
// reloads the file instead; while fsnotify is watching, the poll does not
// reload. It returns once the goroutines are started; they stop when ctx
// is done.
func (s *Store) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("[config] fsnotify unavailable (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(s.path); err != nil {
		log.Printf("[config] failed to watch %s (%v), falling back to polling", s.path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						time.Sleep(100 * time.Millisecond)
						_ = s.Reload()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[config] watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if usePolling {
					_ = s.Reload()
				}
			}
		}
	}()
}
