package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// VoteCache remembers locally which option this machine voted for, so the
// CLI can refuse a second vote before asking the server. It is advisory;
// the server is the authority.
type VoteCache struct {
	mu    sync.Mutex
	path  string
	votes map[string]string
}

func VoteKey(roomCode, name string) string {
	return fmt.Sprintf("vote:%s:%s", roomCode, name)
}

// OpenVoteCache loads the cache file at path. A missing file is an empty cache.
func OpenVoteCache(path string) (*VoteCache, error) {
	c := &VoteCache{path: path, votes: make(map[string]string)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vote cache: %w", err)
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.votes); err != nil {
		return nil, fmt.Errorf("decoding vote cache: %w", err)
	}
	return c, nil
}

func (c *VoteCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.votes[key]
	return v, ok
}

func (c *VoteCache) Set(key, option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.votes[key] == option {
		return nil
	}
	c.votes[key] = option
	return c.saveLocked()
}

func (c *VoteCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.votes[key]; !ok {
		return nil
	}
	delete(c.votes, key)
	return c.saveLocked()
}

func (c *VoteCache) saveLocked() error {
	b, err := json.MarshalIndent(c.votes, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".votes-*")
	if err != nil {
		return fmt.Errorf("writing vote cache: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing vote cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing vote cache: %w", err)
	}
	return os.Rename(tmp.Name(), c.path)
}
