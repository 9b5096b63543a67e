package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"daily-updates-bot/store"
)

type Task func(ctx context.Context)

const (
	tickInterval = time.Second
	// Tasks sharing one trigger time all start together, so keep a
	// few slots of headroom above the number of configured updates.
	maxConcurrentTasks = 8
	clockLayout        = "15:04:05"
)

// Scheduler fires tasks when the wall clock in a fixed timezone matches
// their configured trigger time, with second granularity. Tasks sharing
// a trigger time fire together and complete independently.
type Scheduler struct {
	loc  *time.Location
	pool *errgroup.Group

	mu     sync.RWMutex
	groups map[string][]string
	tasks  map[string]Task
}

func New(loc *time.Location) *Scheduler {
	pool := &errgroup.Group{}
	pool.SetLimit(maxConcurrentTasks)
	return &Scheduler{
		loc:    loc,
		pool:   pool,
		groups: make(map[string][]string),
		tasks:  make(map[string]Task),
	}
}

// Set registers the task fired for the definition with the given id.
func (s *Scheduler) Set(id string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = task
}

// Reload recomputes the trigger time groups from the definitions. It is
// called at startup and after every settings edit.
func (s *Scheduler) Reload(defs []store.UpdateDefinition) {
	groups := make(map[string][]string)
	for _, def := range defs {
		t := def.Time()
		groups[t] = append(groups[t], def.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = groups
}

// Groups returns a copy of the current trigger time groups.
func (s *Scheduler) Groups() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make(map[string][]string, len(s.groups))
	for t, ids := range s.groups {
		groups[t] = append([]string(nil), ids...)
	}
	return groups
}

// Run ticks once per second until ctx is cancelled, then waits for
// in-flight tasks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.pool.Wait(); err != nil {
				log.Printf("error while waiting for scheduled tasks: %v", err.Error())
			}
			return
		case now := <-ticker.C:
			s.tick(ctx, now.In(s.loc).Format(clockLayout))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, clock string) {
	s.mu.RLock()
	ids := append([]string(nil), s.groups[clock]...)
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.tasks[id])
	}
	s.mu.RUnlock()

	for i, task := range tasks {
		if task == nil {
			log.Printf("no task registered for update %v", ids[i])
			continue
		}
		task := task
		id := ids[i]
		started := s.pool.TryGo(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("task %v panicked: %v", id, r)
				}
			}()
			task(ctx)
			return nil
		})
		if !started {
			// A full pool must not delay the next tick.
			log.Printf("task pool is full, skipping update %v at %v", id, clock)
		}
	}
}
