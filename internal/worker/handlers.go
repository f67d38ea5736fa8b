package worker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/logging"
	"github.com/devmorchid/secureboard/internal/models"
)

const (
	tokenCleanupInterval = time.Hour
	dueSoonScanInterval  = 24 * time.Hour
	dueSoonWindow        = 24 * time.Hour
)

// RegisterDefaultHandlers wires the built-in job handlers onto w. The
// cleanup and scan jobs are recurring: each successful run enqueues its
// successor through queue.
func RegisterDefaultHandlers(w *Worker, db *gorm.DB, queue *JobQueue) {
	w.RegisterHandler(JobTypeTaskAssigned, notifyTaskAssigned(db))
	w.RegisterHandler(JobTypeDueSoonReminder, notifyDueSoon(db))
	w.RegisterHandler(JobTypeDueSoonScan, scanDueSoonTasks(db, queue))
	w.RegisterHandler(JobTypeTokenCleanup, cleanupExpiredTokens(db, queue))
}

// notifyTaskAssigned records the assignment event. Delivery is a log
// line for now; a mail transport can hang off the same handler.
func notifyTaskAssigned(db *gorm.DB) JobHandler {
	return func(ctx context.Context, job *Job) error {
		taskID, ok := job.Payload["task_id"].(string)
		if !ok {
			return fmt.Errorf("task_assigned job %s missing task_id", job.ID)
		}
		var task models.Task
		if err := db.WithContext(ctx).Preload("Assignee").First(&task, "id = ?", taskID).Error; err != nil {
			return err
		}
		log := logging.WithComponent("worker").WithField("task_id", taskID)
		if task.Assignee != nil {
			log = log.WithField("assignee", task.Assignee.Email)
		}
		log.Info("task assignment notification")
		return nil
	}
}

func notifyDueSoon(db *gorm.DB) JobHandler {
	return func(ctx context.Context, job *Job) error {
		taskID, ok := job.Payload["task_id"].(string)
		if !ok {
			return fmt.Errorf("due_soon_reminder job %s missing task_id", job.ID)
		}
		var task models.Task
		if err := db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
			return err
		}
		if task.Status == models.TaskStatusDone {
			return nil
		}
		logging.WithComponent("worker").
			WithField("task_id", taskID).
			WithField("due_date", task.DueDate).
			Info("task due soon reminder")
		return nil
	}
}

// scanDueSoonTasks enqueues a reminder for every unfinished task whose
// due date falls inside the lookahead window, then schedules the next
// scan.
func scanDueSoonTasks(db *gorm.DB, queue *JobQueue) JobHandler {
	return func(ctx context.Context, job *Job) error {
		now := time.Now()
		from := now.Format("2006-01-02")
		to := now.Add(dueSoonWindow).Format("2006-01-02")

		var tasks []models.Task
		err := db.WithContext(ctx).
			Where("due_date IS NOT NULL AND due_date BETWEEN ? AND ?", from, to).
			Where("status <> ?", models.TaskStatusDone).
			Find(&tasks).Error
		if err != nil {
			return err
		}

		for _, task := range tasks {
			if err := queue.Enqueue(QueueDefault, JobTypeDueSoonReminder, map[string]interface{}{
				"task_id": task.ID.String(),
			}); err != nil {
				return err
			}
		}
		if len(tasks) > 0 {
			logging.WithComponent("worker").
				WithField("reminders", len(tasks)).
				Info("due soon reminders scheduled")
		}
		return queue.EnqueueAt(QueueDefault, JobTypeDueSoonScan, nil, now.Add(dueSoonScanInterval))
	}
}

func cleanupExpiredTokens(db *gorm.DB, queue *JobQueue) JobHandler {
	return func(ctx context.Context, job *Job) error {
		res := db.WithContext(ctx).
			Where("expires_at < ?", time.Now()).
			Delete(&models.Token{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			logging.WithComponent("worker").
				WithField("removed", res.RowsAffected).
				Info("expired tokens purged")
		}
		return queue.EnqueueAt(QueueDefault, JobTypeTokenCleanup, nil, time.Now().Add(tokenCleanupInterval))
	}
}
