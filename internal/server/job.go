package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// JobStatus represents the current state of a sniff job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusSniffing  JobStatus = "sniffing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents one page sniff
type Job struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Wait       time.Duration     `json:"-"`
	Status     JobStatus         `json:"status"`
	Batches    int               `json:"batches"`
	Candidates []media.Candidate `json:"candidates,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	// Internal fields (not serialized)
	cancel context.CancelFunc `json:"-"`
	ctx    context.Context    `json:"-"`
}

// SniffFunc opens url, collects candidates for wait and returns them.
// onBatch is called for every batch published while the page is open.
type SniffFunc func(ctx context.Context, url string, wait time.Duration, onBatch func()) ([]media.Candidate, error)

// JobQueue manages sniff jobs with a worker pool
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	maxConcurrent int
	sniffFn       SniffFunc
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewJobQueue creates a new job queue with the specified concurrency
func NewJobQueue(maxConcurrent int, sniffFn SniffFunc) *JobQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &JobQueue{
		jobs:          make(map[string]*Job),
		queue:         make(chan *Job, 100),
		maxConcurrent: maxConcurrent,
		sniffFn:       sniffFn,
		stopCleanup:   make(chan struct{}),
	}
}

// Start begins the worker pool and cleanup routine
func (jq *JobQueue) Start() {
	for i := 0; i < jq.maxConcurrent; i++ {
		jq.wg.Add(1)
		go jq.worker()
	}

	// every 10 minutes, remove finished jobs older than 1 hour
	jq.cleanupTicker = time.NewTicker(10 * time.Minute)
	go jq.cleanupLoop()
}

// Stop cancels running jobs and waits for the workers
func (jq *JobQueue) Stop() {
	jq.stopOnce.Do(func() {
		jq.mu.Lock()
		for _, job := range jq.jobs {
			job.cancel()
		}
		jq.mu.Unlock()

		close(jq.queue)
		close(jq.stopCleanup)
		if jq.cleanupTicker != nil {
			jq.cleanupTicker.Stop()
		}
		jq.wg.Wait()
	})
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	if job.ctx.Err() != nil {
		return
	}
	jq.updateJobStatus(job.ID, JobStatusSniffing, "")

	onBatch := func() {
		jq.mu.Lock()
		defer jq.mu.Unlock()
		if j, ok := jq.jobs[job.ID]; ok {
			j.Batches++
			j.UpdatedAt = time.Now()
		}
	}

	cands, err := jq.sniffFn(job.ctx, job.URL, job.Wait, onBatch)

	jq.mu.Lock()
	if j, ok := jq.jobs[job.ID]; ok {
		j.Candidates = cands
	}
	jq.mu.Unlock()

	if err != nil {
		if errors.Is(job.ctx.Err(), context.Canceled) {
			jq.updateJobStatus(job.ID, JobStatusCancelled, "cancelled by user")
		} else {
			jq.updateJobStatus(job.ID, JobStatusFailed, err.Error())
		}
		return
	}
	if errors.Is(job.ctx.Err(), context.Canceled) {
		jq.updateJobStatus(job.ID, JobStatusCancelled, "")
		return
	}

	jq.updateJobStatus(job.ID, JobStatusCompleted, "")
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs(time.Now().Add(-1 * time.Hour))
		case <-jq.stopCleanup:
			return
		}
	}
}

func (jq *JobQueue) cleanupOldJobs(cutoff time.Time) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	for id, job := range jq.jobs {
		if job.Status.finished() && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
		}
	}
}

// ClearHistory removes all finished jobs
func (jq *JobQueue) ClearHistory() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if job.Status.finished() {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// RemoveJob removes a single finished job by ID
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !job.Status.finished() {
		return false
	}

	delete(jq.jobs, id)
	return true
}

// AddJob creates and queues a new sniff job
func (jq *JobQueue) AddJob(url string, wait time.Duration) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Wait:      wait,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	jq.jobs[job.ID] = job
	jq.mu.Unlock()

	select {
	case jq.queue <- job:
		return job.snapshot(), nil
	default:
		jq.mu.Lock()
		delete(jq.jobs, job.ID)
		jq.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("job queue is full")
	}
}

// snapshot copies the job so it can leave the lock
func (j *Job) snapshot() *Job {
	c := *j
	c.Candidates = append([]media.Candidate(nil), j.Candidates...)
	return &c
}

// GetJob returns a copy of a job by ID
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		return job.snapshot()
	}
	return nil
}

// GetAllJobs returns copies of all jobs, oldest first
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sortJobs(jobs)
	return jobs
}

// CancelJob cancels a queued or running job by ID
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.Status.finished() {
		return false
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now()
	return true
}

func (jq *JobQueue) updateJobStatus(id string, status JobStatus, errMsg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		// a cancelled job stays cancelled
		if job.Status == JobStatusCancelled && status != JobStatusCancelled {
			return
		}
		job.Status = status
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = time.Now()
	}
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
