// Package fs implements the shared store as a directory of per-key files
// watched with fsnotify. Several processes point at the same directory;
// each write by one process surfaces as a change event in the others.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"assetline/internal/store/core"
)

const fileExt = ".json"

// Store implements core.Store over a shared directory. Writes are atomic
// (temp file + rename) so a watcher never observes a half-written value.
type Store struct {
	root     string
	clientID string

	mu        sync.Mutex
	ownWrites map[string]string // key -> sha256 of last own write
	watches   []chan core.Event
	watcher   *fsnotify.Watcher
	closed    bool
}

// New opens (creating if needed) the shared directory at root.
func New(root, clientID string) (*Store, error) {
	if root == "" {
		root = filepath.Join(".assetline", "shared")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, clientID: clientID, ownWrites: make(map[string]string)}, nil
}

func (s *Store) ClientID() string { return s.clientID }

func keyToFile(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return key + fileExt, nil
}

func fileToKey(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, fileExt), true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	name, err := keyToFile(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return nil, core.ErrNotFound
	}
	return data, err
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	name, err := keyToFile(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ownWrites[key] = digest(value)
	s.mu.Unlock()

	dst := filepath.Join(s.root, name)
	tmp, err := os.CreateTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Watch starts an fsnotify watcher on the shared directory. Events caused
// by this client's own writes are filtered out by content digest.
func (s *Store) Watch(ctx context.Context) (<-chan core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store closed")
	}
	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := w.Add(s.root); err != nil {
			w.Close()
			return nil, err
		}
		s.watcher = w
		go s.pump(w)
	}
	ch := make(chan core.Event, 64)
	s.watches = append(s.watches, ch)
	go func() {
		<-ctx.Done()
		s.removeWatch(ch)
	}()
	return ch, nil
}

func (s *Store) pump(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			key, ok := fileToKey(ev.Name)
			if !ok {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.root, key+fileExt))
			if err != nil {
				continue
			}
			if s.isOwnWrite(key, data) {
				continue
			}
			s.broadcast(core.Event{Key: key, Value: data})
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Store) isOwnWrite(key string, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownWrites[key] == digest(data)
}

func (s *Store) broadcast(ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watches {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) removeWatch(ch chan core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watches {
		if w == ch {
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			close(w)
			return
		}
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ch := range s.watches {
		close(ch)
	}
	s.watches = nil
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
