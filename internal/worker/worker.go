// Package worker drains Redis-backed job queues for work that should
// not run inside a request: assignment notifications, due-date
// reminders and expired token cleanup.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devmorchid/secureboard/internal/logging"
)

type JobType string

const (
	JobTypeTaskAssigned    JobType = "task_assigned"
	JobTypeDueSoonReminder JobType = "due_soon_reminder"
	JobTypeDueSoonScan     JobType = "due_soon_scan"
	JobTypeTokenCleanup    JobType = "token_cleanup"
)

const (
	QueueDefault = "jobs:default"
	QueueRetry   = "jobs:retry"
	QueueDead    = "jobs:dead"
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	concurrency  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

func NewWorker(cfg WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = []string{QueueDefault, QueueRetry}
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		client:       cfg.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		pollInterval: pollInterval,
		concurrency:  cfg.Concurrency,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) handler(jobType JobType) (JobHandler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[jobType]
	return h, ok
}

// Start launches n polling goroutines. Stop cancels them and waits.
func (w *Worker) Start(n int) {
	if n <= 0 {
		n = w.concurrency
	}
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run()
	}
	logging.WithComponent("worker").WithField("goroutines", n).Info("worker started")
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	logging.WithComponent("worker").Info("worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNextJob(); err != nil {
				logging.WithComponent("worker").WithError(err).Warn("job processing failed")
			}
		}
	}
}

// processNextJob pops one job off the first non-empty queue. A job not
// yet due goes back to the tail; a failed job goes to the retry queue
// until its tries run out, then to the dead queue.
func (w *Worker) processNextJob() error {
	for _, queue := range w.queues {
		raw, err := w.client.LPop(w.ctx, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("pop from %s: %w", queue, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return fmt.Errorf("decode job from %s: %w", queue, err)
		}

		if job.ProcessAt.After(time.Now()) {
			return w.push(queue, &job)
		}

		handler, ok := w.handler(job.Type)
		if !ok {
			return fmt.Errorf("no handler for job type %q", job.Type)
		}

		if err := handler(w.ctx, &job); err != nil {
			return w.retry(&job, err)
		}
		return nil
	}
	return nil
}

func (w *Worker) retry(job *Job, cause error) error {
	job.Attempts++
	log := logging.WithComponent("worker").
		WithField("job_id", job.ID).
		WithField("job_type", job.Type).
		WithError(cause)

	if job.Attempts >= job.MaxTries {
		log.Error("job exhausted retries, moving to dead queue")
		return w.push(QueueDead, job)
	}

	// linear backoff per attempt
	job.ProcessAt = time.Now().Add(time.Duration(job.Attempts) * 30 * time.Second)
	log.WithField("attempt", job.Attempts).Warn("job failed, scheduling retry")
	return w.push(QueueRetry, job)
}

func (w *Worker) push(queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.client.RPush(w.ctx, queue, data).Err()
}

// JobQueue is the producer side.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Payload:   payload,
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.RPush(context.Background(), queue, data).Err()
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	return q.client.LLen(context.Background(), queue).Result()
}
