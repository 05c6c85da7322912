package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher feeds extraction jobs to the pool, rotating over users so each
// one gets at most one job per round.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job
	Manager  *Manager

	mu        sync.Mutex
	queues    map[int64]*userQueue // job queue for each user
	ready     *list.List           // LRU queue storing user IDs
	positions map[int64]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)
	jobQueue := make(chan Job, queueSize)

	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		pool:      pool,
		JobQueue:  jobQueue,
		Manager:   manager,
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Extract queues extraction for the upload and waits for the result. When the
// same upload is already in flight the caller joins the existing job instead
// of queuing a duplicate.
func (d *Dispatcher) Extract(ctx context.Context, userID, uploadID int64) (ExtractResult, error) {
	if res, ok := d.Manager.memoized(uploadID); ok {
		return res, res.Err
	}

	ch := make(chan ExtractResult, 1)
	first := d.Manager.state.addWaiter(uploadID, ch)
	if first && !d.submit(userID, uploadID) {
		err := errors.New("extraction queue full")
		d.Manager.state.drainWaiters(uploadID, ExtractResult{UploadID: uploadID, Err: err})
	}

	select {
	case res := <-ch:
		return res, res.Err
	case <-ctx.Done():
		return ExtractResult{}, ctx.Err()
	}
}

// ExtractAsync queues extraction without waiting. Returns false when the
// queue is full.
func (d *Dispatcher) ExtractAsync(userID, uploadID int64) bool {
	if _, ok := d.Manager.memoized(uploadID); ok {
		return true
	}
	ch := make(chan ExtractResult, 1)
	if !d.Manager.state.addWaiter(uploadID, ch) {
		return true // already in flight
	}
	if !d.submit(userID, uploadID) {
		d.Manager.state.drainWaiters(uploadID, ExtractResult{UploadID: uploadID, Err: errors.New("extraction queue full")})
		return false
	}
	return true
}

func (d *Dispatcher) submit(userID, uploadID int64) bool {
	job := Job{Type: Extract, Task: ExtractTask{UserID: userID, UploadID: uploadID}}
	select {
	case d.JobQueue <- job:
		return true
	default:
		return false
	}
}

// CancelUser drops any queued jobs for the user, typically on logout.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[userID]; ok {
		for _, job := range q.jobs {
			d.Manager.state.drainWaiters(job.Task.UploadID,
				ExtractResult{UploadID: job.Task.UploadID, Err: errors.New("extraction cancelled")})
		}
	}
	delete(d.queues, userID)
	if elem, ok := d.positions[userID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userID)
	}
}

// QueueDepth reports queued jobs across users, used by the stats endpoint.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := len(d.JobQueue)
	for _, q := range d.queues {
		total += len(q.jobs)
	}
	return total
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of user in the front of LRU queue
		if !d.dispatchOne() {
			job := <-d.JobQueue // force congestion
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.JobQueue: // non-congestion
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	userID := job.Task.UserID

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[userID]
	if q == nil {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(userID)
	d.positions[userID] = elem
}

// dispatchOne get first user in LRU and dispatch its job
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	for elem != nil {
		userID := elem.Value.(int64)
		q := d.queues[userID]
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		if len(q.jobs) == 0 {
			// user's last queued job, user quits the round-robin
			q.enqueued = false
			d.ready.Remove(elem)
			delete(d.positions, userID)
		} else {
			d.ready.MoveToBack(elem)
		}
		d.mu.Unlock()

		workerChan := d.pool.acquire()
		debugLog("[dispatcher] assign extract upload %d for user %d", job.Task.UploadID, userID)
		workerChan <- job
		return true
	}
	d.mu.Unlock()
	return false
}
