package worker

import (
	"sync"
	"time"
)

const defaultWorkerIdle = 30 * time.Second

// workerSlot tracks one worker's job channel and its place in the idle list.
// A slot marked retired must never be handed out again; its owner is already
// draining toward a Stop.
type workerSlot struct {
	jobs    chan Job
	idleAt  time.Time
	queued  bool
	retired bool
}

// jobChannelPool grows up to max workers under load and trims idle workers
// back down to min. acquire blocks when the pool is saturated.
type jobChannelPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*workerSlot
	slots   map[chan Job]*workerSlot
	min     int
	max     int
	running int
	expiry  time.Duration
	manager *Manager
}

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration, manager *Manager) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		slots:   make(map[chan Job]*workerSlot),
		min:     minWorkers,
		max:     maxWorkers,
		expiry:  idle,
		manager: manager,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.trimLoop()
	return p
}

// startLocked registers a new worker slot. Caller holds p.mu and has already
// checked p.running < p.max; the returned worker must be started after the
// lock is dropped.
func (p *jobChannelPool) startLocked() *Worker {
	w := NewWorker(p, p.manager)
	p.slots[w.jobChannel] = &workerSlot{jobs: w.jobChannel}
	p.running++
	return w
}

// spawnWorker pre-warms one worker if there is room.
func (p *jobChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	w := p.startLocked()
	p.mu.Unlock()
	w.Start()
}

// acquire returns an idle worker's channel, growing the pool if it is below
// max, or blocks until one is released.
func (p *jobChannelPool) acquire() chan Job {
	for {
		p.mu.Lock()
		if slot := p.takeIdle(); slot != nil {
			p.mu.Unlock()
			return slot.jobs
		}
		if p.running < p.max {
			w := p.startLocked()
			p.mu.Unlock()
			w.Start()
			continue
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// Release returns a worker to the idle list after it finishes a job.
func (p *jobChannelPool) Release(ch chan Job) {
	p.mu.Lock()
	slot, ok := p.slots[ch]
	if !ok || slot.retired || slot.queued {
		p.mu.Unlock()
		return
	}
	slot.queued = true
	slot.idleAt = time.Now()
	p.idle = append(p.idle, slot)
	p.mu.Unlock()
	p.cond.Signal()
}

// retire removes a worker that is shutting down.
func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if slot, ok := p.slots[ch]; ok {
		delete(p.slots, ch)
		slot.retired = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// takeIdle pops the oldest usable idle slot. Caller holds p.mu.
func (p *jobChannelPool) takeIdle() *workerSlot {
	for len(p.idle) > 0 {
		slot := p.idle[0]
		p.idle = p.idle[1:]
		if slot.retired {
			continue
		}
		slot.queued = false
		return slot
	}
	return nil
}

func (p *jobChannelPool) trimLoop() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for range ticker.C {
		p.trimIdle()
	}
}

// trimIdle stops workers that sat idle past the expiry, never dropping the
// pool below min. Stop jobs are sent outside the lock so a slow worker cannot
// stall acquire.
func (p *jobChannelPool) trimIdle() {
	var expired []*workerSlot
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	kept := p.idle[:0]
	for _, slot := range p.idle {
		if slot.retired {
			continue
		}
		if now.Sub(slot.idleAt) >= p.expiry && p.running-len(expired) > p.min {
			slot.retired = true
			slot.queued = false
			expired = append(expired, slot)
			continue
		}
		kept = append(kept, slot)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, slot := range expired {
		slot.jobs <- Job{Type: Stop}
	}
}
