package store

import (
	"errors"
	"io/fs"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/util"
)

const SnapshotFilename = "db.dat"

type hostEntry struct {
	HostID string
	Record shared.HostRecord
}

type snapshot struct {
	Hosts []hostEntry
}

// Snapshot keeps the whole store in a single compressed file that is
// rewritten on every save. Unless atomic writes are enabled, a crash during
// a save can leave a truncated file behind.
type Snapshot struct {
	path   string
	atomic bool
}

type SnapshotOption func(*Snapshot)

func WithAtomicWrites() SnapshotOption {
	return func(s *Snapshot) {
		s.atomic = true
	}
}

func NewSnapshot(path string, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshot) Load() (map[string]*shared.HostRecord, error) {
	var snap snapshot
	err := util.Load(s.path, &snap)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return map[string]*shared.HostRecord{}, nil
	case err != nil:
		return nil, err
	}

	records := make(map[string]*shared.HostRecord, len(snap.Hosts))
	for i := range snap.Hosts {
		records[snap.Hosts[i].HostID] = &snap.Hosts[i].Record
	}
	return records, nil
}

func (s *Snapshot) Save(records map[string]*shared.HostRecord) error {
	hostIDs := maps.Keys(records)
	slices.Sort(hostIDs)

	snap := snapshot{Hosts: make([]hostEntry, 0, len(hostIDs))}
	for _, id := range hostIDs {
		snap.Hosts = append(snap.Hosts, hostEntry{HostID: id, Record: *records[id]})
	}

	var opts []util.PersistOption
	if s.atomic {
		opts = append(opts, util.WithAtomicWrite())
	}
	return util.Persist(s.path, snap, opts...)
}

func (s *Snapshot) Close() error {
	return nil
}
