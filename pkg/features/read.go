package features

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/syndtr/goleveldb/leveldb"
)

type Options struct {
	DataDir    string
	DatasetURL string
	CachePath  string

	WindowLength    int
	WindowStep      int
	DCTLength       int
	MinClassWindows int
}

func protocolFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "subject*.dat"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func subjectID(file string) (int, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), "subject"), ".dat")
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("invalid protocol file name %s", file)
	}
	return id, nil
}

// Read returns the feature pools of every subject found in opts.DataDir,
// downloading the dataset first when the directory holds no protocol files.
// Pools come from the leveldb cache at opts.CachePath when present.
func Read(ctx context.Context, pw progress.Writer, opts Options) (Dataset, error) {
	extractor, err := NewExtractor(opts.WindowLength, opts.WindowStep, opts.DCTLength)
	if err != nil {
		return nil, err
	}

	files, err := protocolFiles(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && opts.DatasetURL != "" {
		if err := Download(ctx, opts.DatasetURL, opts.DataDir); err != nil {
			return nil, err
		}
		if files, err = protocolFiles(opts.DataDir); err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no protocol files found in %s", opts.DataDir)
	}

	var db *leveldb.DB
	if opts.CachePath != "" {
		if db, err = leveldb.OpenFile(opts.CachePath, nil); err != nil {
			return nil, fmt.Errorf("failed to open cache %s: %v", opts.CachePath, err)
		}
		defer db.Close()
	}

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Reading features",
			Total:   int64(len(files)),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	data := Dataset{}
	for _, file := range files {
		subject, err := subjectID(file)
		if err != nil {
			return nil, err
		}

		pool, err := readSubject(db, extractor, subject, file)
		if err != nil {
			return nil, err
		}

		for class, vectors := range pool {
			if len(vectors) < opts.MinClassWindows {
				delete(pool, class)
			}
		}
		if len(pool) > 0 {
			data[subject] = pool
		}

		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if tracker != nil {
		tracker.MarkAsDone()
	}

	return data, nil
}

func readSubject(db *leveldb.DB, extractor *Extractor, subject int, file string) (Pool, error) {
	key := extractor.cacheKey()
	if db != nil {
		if pool, ok, err := GetCachedPool(db, key, subject); err != nil {
			return nil, err
		} else if ok {
			return pool, nil
		}
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	segments, err := ParseProtocol(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", file, err)
	}

	pool := Pool{}
	for _, segment := range segments {
		if windows := extractor.Extract(segment); len(windows) > 0 {
			pool[segment.Activity] = append(pool[segment.Activity], windows...)
		}
	}

	if db != nil {
		if err := PutCachedPool(db, key, subject, pool); err != nil {
			return nil, fmt.Errorf("failed to cache subject %d: %v", subject, err)
		}
	}

	return pool, nil
}
