package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/util"
)

const LevelDBDirname = "db"

// LevelDB keeps one key per host. Every save writes all hosts in a single synced batch.
type LevelDB struct {
	db *leveldb.DB
}

func NewLevelDB(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dbPath, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Load() (map[string]*shared.HostRecord, error) {
	records := make(map[string]*shared.HostRecord)
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		rec := &shared.HostRecord{}
		if err := util.Unmarshal(iter.Value(), rec); err != nil {
			return nil, fmt.Errorf("decoding record %q: %w", iter.Key(), err)
		}
		records[string(iter.Key())] = rec
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func (l *LevelDB) Save(records map[string]*shared.HostRecord) error {
	batch := new(leveldb.Batch)
	for hostID, rec := range records {
		serialized, err := util.Marshal(*rec)
		if err != nil {
			return fmt.Errorf("encoding record %q: %w", hostID, err)
		}
		batch.Put([]byte(hostID), serialized)
	}
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing records in DB: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
