package store

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/timshannon/badgerhold/v4"
)

// BadgerStore is the durable Store adapter: jobs, pages, and chunks
// each live in their own badgerhold bucket (distinguished by Go type,
// per badgerhold convention) within one embedded database, following
// the construction pattern of internal/cache.BadgerCache and
// ternarybob-quaero's badger-backed job storage.
type BadgerStore struct {
	db *badgerhold.Store
}

// NewBadgerStore opens (creating if necessary) a badgerhold store at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Options = options.Options.WithLogger(nil)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) SaveJob(job Job) error {
	return b.db.Upsert(job.ID, job)
}

func (b *BadgerStore) GetJob(id string) (Job, error) {
	var job Job
	if err := b.db.Get(id, &job); err != nil {
		if isNotFound(err) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

func (b *BadgerStore) ListJobsByUser(userID string, statuses ...JobStatus) ([]Job, error) {
	query := badgerhold.Where("UserID").Eq(userID)
	if len(statuses) > 0 {
		wanted := make([]interface{}, len(statuses))
		for i, s := range statuses {
			wanted[i] = s
		}
		query = query.And("Status").In(wanted...)
	}

	var jobs []Job
	if err := b.db.Find(&jobs, query); err != nil {
		return nil, err
	}
	return jobs, nil
}

// InsertCrawledPage keys the record on PageKey(job_id, url_hash) and
// uses badgerhold's Insert (not Upsert): a second worker racing to
// store the same page gets ErrKeyExists back, which this maps to
// ErrConflict — the "loser discards its work" rule of §5.
func (b *BadgerStore) InsertCrawledPage(page CrawledPage) error {
	key := PageKey(page.JobID, page.URLHash)
	if err := b.db.Insert(key, page); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (b *BadgerStore) ListCrawledPages(jobID string) ([]CrawledPage, error) {
	var pages []CrawledPage
	if err := b.db.Find(&pages, badgerhold.Where("JobID").Eq(jobID).SortBy("CrawledAt")); err != nil {
		return nil, err
	}
	return pages, nil
}

func (b *BadgerStore) SaveChunk(chunk PageContentChunk) error {
	return b.db.Upsert(chunk.PageID, chunk)
}

func (b *BadgerStore) GetChunk(pageID string) (PageContentChunk, error) {
	var chunk PageContentChunk
	if err := b.db.Get(pageID, &chunk); err != nil {
		if isNotFound(err) {
			return PageContentChunk{}, ErrNotFound
		}
		return PageContentChunk{}, err
	}
	return chunk, nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, badgerhold.ErrNotFound)
}
