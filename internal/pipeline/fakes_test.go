package pipeline_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/content"
	"github.com/rankforge/crawlpipe/internal/crawlrun"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
	"github.com/rankforge/crawlpipe/internal/metrics"
	"github.com/rankforge/crawlpipe/internal/pipeline"
	"github.com/rankforge/crawlpipe/internal/search"
)

// memStore is an in-memory stand-in for every repository the
// orchestrator touches, mirroring the guarded-update semantics of the
// real ones.
type memStore struct {
	mu          sync.Mutex
	projects    map[string]*domain.Project
	pages       map[string]map[string]*pageRow
	sessions    map[string]*domain.CrawlSession
	credentials map[string]string
	deliveries  map[string]bool
	tasks       []domain.StageTask
}

type pageRow struct {
	status    domain.CrawlStatus
	layers    *domain.ContentLayers
	wordCount int
}

func newMemStore() *memStore {
	return &memStore{
		projects:    map[string]*domain.Project{},
		pages:       map[string]map[string]*pageRow{},
		sessions:    map[string]*domain.CrawlSession{},
		credentials: map[string]string{},
		deliveries:  map[string]bool{},
	}
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrProjectNotFound, id)
	}

	clone := *project
	return &clone, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, from, to domain.Status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok || project.Status != from {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	project.Status = to
	project.StatusMessage = message
	return nil
}

func (s *memStore) SetError(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok || project.Status.Terminal() {
		return nil
	}

	project.Status = domain.StatusError
	project.StatusMessage = message
	return nil
}

func (s *memStore) SetAnalysisResult(_ context.Context, id string, result *domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project, ok := s.projects[id]; ok {
		clone := *result
		project.AnalysisResult = &clone
	}
	return nil
}

func (s *memStore) SyncDiscovered(_ context.Context, projectID string, urls []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.pages[projectID]
	if !ok {
		rows = map[string]*pageRow{}
		s.pages[projectID] = rows
	}

	inserted := 0
	for _, u := range urls {
		if _, exists := rows[u]; !exists {
			rows[u] = &pageRow{status: domain.CrawlStatusQueued}
			inserted++
		}
	}
	return inserted, nil
}

func (s *memStore) ListQueuedURLs(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var urls []string
	for u, row := range s.pages[projectID] {
		if row.status == domain.CrawlStatusQueued {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *memStore) BulkUpdateResults(
	_ context.Context, projectID string, results []database.PageResult, _ time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		row, ok := s.pages[projectID][res.URL]
		if !ok {
			continue
		}
		row.status = res.Status
		row.layers = res.ContentLayers
		row.wordCount = res.WordCount
	}
	return nil
}

func (s *memStore) ListCrawledTexts(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var texts []string
	for _, row := range s.pages[projectID] {
		if row.status == domain.CrawlStatusCrawled && row.layers != nil {
			texts = append(texts, row.layers.Text)
		}
	}
	return texts, nil
}

func (s *memStore) Create(_ context.Context, session *domain.CrawlSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[session.RunID] = &clone
	return nil
}

func (s *memStore) GetByRunID(_ context.Context, runID string) (*domain.CrawlSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrSessionNotFound, runID)
	}

	clone := *session
	return &clone, nil
}

func (s *memStore) UpdateOutcome(_ context.Context, runID, status, message string, finishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[runID]; ok {
		session.Status = status
		session.StatusMessage = message
		session.FinishedAt = finishedAt
	}
	return nil
}

func (s *memStore) GetCrawlerToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.credentials[userID]
	if !ok || token == "" {
		return "", fmt.Errorf("%w: user %s", database.ErrCredentialNotFound, userID)
	}
	return token, nil
}

func (s *memStore) RecordDelivery(_ context.Context, runID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := runID + "|" + eventType
	if s.deliveries[key] {
		return false, nil
	}
	s.deliveries[key] = true
	return true, nil
}

func (s *memStore) Enqueue(_ context.Context, task domain.StageTask) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, task)
	return fmt.Sprintf("%d-0", len(s.tasks)), nil
}

func (s *memStore) project(id string) *domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *s.projects[id]
	return &clone
}

func (s *memStore) pendingTasks() []domain.StageTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StageTask(nil), s.tasks...)
}

func (s *memStore) pageRow(projectID, url string) *pageRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[projectID][url]
}

// fakeDiscoverer returns a fixed URL set or error.
type fakeDiscoverer struct {
	urls []string
	err  error
}

func (f *fakeDiscoverer) Discover(context.Context, string) ([]string, error) {
	return f.urls, f.err
}

// fakeCrawler is the external crawl service double.
type fakeCrawler struct {
	mu        sync.Mutex
	runID     string
	submitted []crawlrun.SubmitRequest
	submitErr error
	dataset   []crawlrun.CrawledPage
	fetchErr  error
	fetched   []string
}

func (f *fakeCrawler) Submit(_ context.Context, req crawlrun.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return f.runID, nil
}

func (f *fakeCrawler) FetchDataset(_ context.Context, datasetID, _ string) ([]crawlrun.CrawledPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetched = append(f.fetched, datasetID)
	return f.dataset, nil
}

// passthroughDecrypter treats stored credentials as already-open.
type passthroughDecrypter struct{ fail bool }

func (d *passthroughDecrypter) Decrypt(encoded string) (string, bool) {
	if d.fail {
		return "", false
	}
	return encoded, true
}

// testEnv bundles one orchestrator with its fakes.
type testEnv struct {
	store      *memStore
	discoverer *fakeDiscoverer
	crawler    *fakeCrawler
	decrypter  *passthroughDecrypter
	orch       *pipeline.Orchestrator
}

const callbackURL = "https://pipeline.internal/api/v1/webhooks/crawl"

func newTestEnv() *testEnv {
	store := newMemStore()
	discoverer := &fakeDiscoverer{}
	crawler := &fakeCrawler{runID: "run-123"}
	decrypter := &passthroughDecrypter{}

	indexer, _ := search.NewIndexer(config.SearchConfig{}, logger.NewNoop())

	orch := pipeline.New(
		pipeline.Config{CallbackURL: callbackURL},
		pipeline.Deps{
			Projects:    store,
			Pages:       store,
			Sessions:    store,
			Credentials: store,
			Events:      store,
			Discoverer:  discoverer,
			Crawler:     crawler,
			Envelope:    decrypter,
			Extractor:   content.NewExtractor(),
			Indexer:     indexer,
			Queue:       store,
			Metrics:     metrics.NewMetrics(prometheus.NewRegistry()),
			Logger:      logger.NewNoop(),
		})

	return &testEnv{
		store:      store,
		discoverer: discoverer,
		crawler:    crawler,
		decrypter:  decrypter,
		orch:       orch,
	}
}

func (e *testEnv) seedProject(id string, status domain.Status, keywords ...string) {
	e.store.projects[id] = &domain.Project{
		ID:       id,
		UserID:   "user-1",
		Domain:   "example.com",
		Keywords: pq.StringArray(keywords),
		Status:   status,
	}
	e.store.credentials["user-1"] = "crawler-token"
}
