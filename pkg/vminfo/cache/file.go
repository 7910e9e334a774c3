package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/telekom/azure-vminfo/pkg/utils"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version int                             `json:"version"`
	Entries map[inventory.Fingerprint]Entry `json:"entries"`
}

// FileCache keeps every entry in one JSON document at Path. Writers do a
// read-modify-write followed by an atomic replace. Concurrent writers from
// separate processes may lose each other's entries but never produce a torn file.
type FileCache struct {
	Path string
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

func (c *FileCache) Get(_ context.Context, fp inventory.Fingerprint) (Entry, bool, error) {
	doc, err := c.load()
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := doc.Entries[fp]
	return entry, ok, nil
}

func (c *FileCache) Put(_ context.Context, fp inventory.Fingerprint, vms []inventory.VirtualMachine) error {
	doc, err := c.load()
	if err != nil {
		// A corrupt document is replaced rather than blocking new results.
		doc = &fileDocument{}
	}
	if doc.Entries == nil {
		doc.Entries = map[inventory.Fingerprint]Entry{}
	}
	doc.Version = fileFormatVersion
	doc.Entries[fp] = newEntry(fp, vms, nowOr(c.Now))

	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal result cache: %w", err)
	}
	if err := utils.WriteFileAtomic(c.Path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write result cache: %w", err)
	}
	return nil
}

func (c *FileCache) List(_ context.Context) ([]Summary, error) {
	doc, err := c.load()
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(doc.Entries))
	for fp, entry := range doc.Entries {
		summaries = append(summaries, Summary{Fingerprint: fp, Records: len(entry.VMs), FetchedAt: entry.FetchedAt})
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (c *FileCache) Clear(_ context.Context) error {
	if err := utils.RemoveIfExists(c.Path); err != nil {
		return fmt.Errorf("failed to remove result cache: %w", err)
	}
	return nil
}

// load returns an empty document when the file does not exist.
func (c *FileCache) load() (*fileDocument, error) {
	content, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileDocument{Version: fileFormatVersion, Entries: map[inventory.Fingerprint]Entry{}}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCacheCorrupt, doc.Version)
	}
	if doc.Entries == nil {
		doc.Entries = map[inventory.Fingerprint]Entry{}
	}
	return &doc, nil
}

func sortSummaries(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].FetchedAt.Equal(summaries[j].FetchedAt) {
			return summaries[i].FetchedAt.After(summaries[j].FetchedAt)
		}
		return summaries[i].Fingerprint < summaries[j].Fingerprint
	})
}
