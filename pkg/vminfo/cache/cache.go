package cache

import (
	"context"
	"errors"
	"time"

	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

// ErrCacheCorrupt is returned by Get when stored data cannot be decoded.
// Callers treat it as a miss.
var ErrCacheCorrupt = errors.New("result cache corrupt")

// Entry is one cached result set.
type Entry struct {
	Fingerprint inventory.Fingerprint      `json:"fingerprint"`
	VMs         []inventory.VirtualMachine `json:"vms"`
	FetchedAt   time.Time                  `json:"fetchedAt"`
}

// Age is informational; entries never expire on their own.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Summary describes an entry without its records.
type Summary struct {
	Fingerprint inventory.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
	Records     int                   `json:"records" yaml:"records"`
	FetchedAt   time.Time             `json:"fetchedAt" yaml:"fetchedAt"`
}

// ResultCache persists complete result sets. Put only ever receives a fully
// paged result; there is no way to append to an entry.
type ResultCache interface {
	Get(ctx context.Context, fp inventory.Fingerprint) (Entry, bool, error)
	Put(ctx context.Context, fp inventory.Fingerprint, vms []inventory.VirtualMachine) error
	List(ctx context.Context) ([]Summary, error)
	Clear(ctx context.Context) error
}

func newEntry(fp inventory.Fingerprint, vms []inventory.VirtualMachine, now time.Time) Entry {
	if vms == nil {
		vms = []inventory.VirtualMachine{}
	}
	return Entry{Fingerprint: fp, VMs: vms, FetchedAt: now.UTC()}
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
