package store

import "sync"

// MemoryStore is an in-process Store adapter: a development and test
// double with the same conflict and lookup semantics as BadgerStore,
// grounded on internal/frontier.CrawlFrontier's mutex-protected map
// shape.
type MemoryStore struct {
	mu     sync.Mutex
	jobs   map[string]Job
	pages  map[string]CrawledPage // keyed by PageKey(jobID, urlHash)
	chunks map[string]PageContentChunk
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]Job),
		pages:  make(map[string]CrawledPage),
		chunks: make(map[string]PageContentChunk),
	}
}

func (m *MemoryStore) SaveJob(job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) GetJob(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (m *MemoryStore) ListJobsByUser(userID string, statuses ...JobStatus) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[JobStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	var result []Job
	for _, job := range m.jobs {
		if job.UserID != userID {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[job.Status]; !ok {
				continue
			}
		}
		result = append(result, job)
	}
	return result, nil
}

func (m *MemoryStore) InsertCrawledPage(page CrawledPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := PageKey(page.JobID, page.URLHash)
	if _, exists := m.pages[key]; exists {
		return ErrConflict
	}
	m.pages[key] = page
	return nil
}

func (m *MemoryStore) ListCrawledPages(jobID string) ([]CrawledPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []CrawledPage
	for _, page := range m.pages {
		if page.JobID == jobID {
			result = append(result, page)
		}
	}
	return result, nil
}

func (m *MemoryStore) SaveChunk(chunk PageContentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.PageID] = chunk
	return nil
}

func (m *MemoryStore) GetChunk(pageID string) (PageContentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[pageID]
	if !ok {
		return PageContentChunk{}, ErrNotFound
	}
	return chunk, nil
}

func (m *MemoryStore) Close() error { return nil }
