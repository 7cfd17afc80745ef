// Package directory provides a file-backed MemberDirectory.
package directory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/muster/internal/ports/secondary"
)

// Member is one directory entry.
type Member struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

type file struct {
	Members []Member `yaml:"members"`
}

// FileDirectory implements secondary.MemberDirectory over a YAML member list.
// Each lookup stats the file and reloads it when its mtime or size changed,
// so role edits take effect without a restart.
type FileDirectory struct {
	path string

	mu      sync.RWMutex
	members map[string]Member
	modTime time.Time
	size    int64
}

// Load reads the directory file at path.
func Load(path string) (*FileDirectory, error) {
	d := &FileDirectory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// New builds an in-memory directory from members.
func New(members []Member) (*FileDirectory, error) {
	index, err := indexMembers(members)
	if err != nil {
		return nil, err
	}
	return &FileDirectory{members: index}, nil
}

// Reload re-reads the directory file and swaps the member set atomically.
func (d *FileDirectory) Reload() error {
	if d.path == "" {
		return nil
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("failed to read member directory: %w", err)
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read member directory: %w", err)
	}
	members, err := Parse(data)
	if err != nil {
		return err
	}
	index, err := indexMembers(members)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.members = index
	d.modTime = info.ModTime()
	d.size = info.Size()
	d.mu.Unlock()
	return nil
}

// refresh reloads the file if it changed since the last load.
func (d *FileDirectory) refresh() error {
	if d.path == "" {
		return nil
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("failed to read member directory: %w", err)
	}

	d.mu.RLock()
	unchanged := info.ModTime().Equal(d.modTime) && info.Size() == d.size
	d.mu.RUnlock()
	if unchanged {
		return nil
	}
	return d.Reload()
}

// Parse decodes a directory document.
func Parse(data []byte) ([]Member, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse member directory: %w", err)
	}
	return f.Members, nil
}

func indexMembers(members []Member) (map[string]Member, error) {
	index := make(map[string]Member, len(members))
	for i, m := range members {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("member %d: id is required", i+1)
		}
		if _, dup := index[m.ID]; dup {
			return nil, fmt.Errorf("member %s: duplicate id", m.ID)
		}
		index[m.ID] = m
	}
	return index, nil
}

// MemberRoles returns a copy of the member's roles.
func (d *FileDirectory) MemberRoles(ctx context.Context, memberID string) ([]string, error) {
	m, err := d.lookup(memberID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.Roles...), nil
}

// DisplayName returns the member's name, or the id when no name is set.
func (d *FileDirectory) DisplayName(ctx context.Context, memberID string) (string, error) {
	m, err := d.lookup(memberID)
	if err != nil {
		return "", err
	}
	if m.Name == "" {
		return m.ID, nil
	}
	return m.Name, nil
}

func (d *FileDirectory) lookup(memberID string) (Member, error) {
	if err := d.refresh(); err != nil {
		return Member{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.members[memberID]
	if !ok {
		return Member{}, fmt.Errorf("member %s: %w", memberID, secondary.ErrNotFound)
	}
	return m, nil
}

var _ secondary.MemberDirectory = (*FileDirectory)(nil)
