package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"desktour/internal/platform/tasks"
)

// NewMux wires every task handler the worker serves. Analysis is the only
// task kind today; future kinds get registered here.
func NewMux(analyze func(ctx context.Context, task *asynq.Task) error) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TaskTypeAnalyze, analyze)
	return mux
}
