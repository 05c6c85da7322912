// Package worker runs document text extraction off the request path. Jobs
// are queued per user and dispatched fairly so one user's large batch cannot
// starve everyone else.
package worker

import "context"

type JobType int

const (
	Extract JobType = iota
	Stop
)

type Job struct {
	Type JobType
	Task ExtractTask
}

// ExtractTask identifies an upload whose text should be extracted.
type ExtractTask struct {
	Ctx      context.Context
	UserID   int64
	UploadID int64
}

// ExtractResult reports the outcome of one extraction.
type ExtractResult struct {
	UploadID int64
	Status   string
	Pages    int
	Err      error
}

type Worker struct {
	manager    *Manager
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		manager:    manager,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			w.pool.Release(w.jobChannel)
			job := <-w.jobChannel
			switch job.Type {
			case Extract:
				w.manager.handleExtract(job.Task)
			case Stop:
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}
