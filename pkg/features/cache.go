package features

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// cacheKey scopes cached windows to the extraction settings that produced them.
func (e *Extractor) cacheKey() string {
	return fmt.Sprintf("dct-%d-%d-%d", e.WindowLength, e.WindowStep, e.DCTLength)
}

func windowPrefix(key string, subject int) []byte {
	return fmt.Appendf([]byte{}, "%s-%d-w-", key, subject)
}

func doneKey(key string, subject int) []byte {
	return fmt.Appendf([]byte{}, "%s-%d-done", key, subject)
}

// GetCachedPool returns the subject's pool if a complete copy is cached.
func GetCachedPool(db *leveldb.DB, key string, subject int) (Pool, bool, error) {
	if ok, err := db.Has(doneKey(key, subject), nil); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}

	pool := Pool{}
	counts := map[int]int{}
	iter := db.NewIterator(util.BytesPrefix(windowPrefix(key, subject)), nil)
	defer iter.Release()
	for iter.Next() {
		var window Window
		if err := json.Unmarshal(iter.Value(), &window); err != nil {
			return nil, false, fmt.Errorf("corrupt cached window %q: %v", iter.Key(), err)
		}
		pool[window.Activity] = append(pool[window.Activity], window.Features)
		counts[window.Activity]++
		if counts[window.Activity] != window.Index+1 {
			return nil, false, fmt.Errorf("cached windows for subject %d activity %d out of order", subject, window.Activity)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, false, err
	}

	return pool, true, nil
}

// PutCachedPool stores every window of the pool and marks the subject complete
// in a single batch.
func PutCachedPool(db *leveldb.DB, key string, subject int, pool Pool) error {
	batch := new(leveldb.Batch)
	for _, activity := range pool.Classes() {
		for i, features := range pool[activity] {
			value, err := json.Marshal(Window{
				Subject:  subject,
				Activity: activity,
				Index:    i,
				Features: features,
			})
			if err != nil {
				return err
			}
			batch.Put(fmt.Appendf(windowPrefix(key, subject), "%03d-%06d", activity, i), value)
		}
	}
	batch.Put(doneKey(key, subject), []byte{1})
	return db.Write(batch, nil)
}
