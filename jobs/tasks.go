package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRentGenerate runs one rent invoice generation pass.
	TaskRentGenerate = "rent:generate"

	rentMaxRetry = 3
	rentTimeout  = 15 * time.Minute
)

// RentGeneratePayload optionally pins the calendar date a run works for.
// An empty date means the day the task executes.
type RentGeneratePayload struct {
	Date string `json:"date,omitempty"`
}

// NewRentGenerateTask constructs an Asynq task for the rent generator.
func NewRentGenerateTask(date string) (*asynq.Task, error) {
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("jobs: rent date %q must be YYYY-MM-DD", date)
		}
	}
	body, err := json.Marshal(RentGeneratePayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRentGenerate, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(rentMaxRetry),
		asynq.Timeout(rentTimeout),
	), nil
}
