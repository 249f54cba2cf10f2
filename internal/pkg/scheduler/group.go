package scheduler

import (
	"context"
	"sync"
)

// Group keeps at most one running task per key. Pollers use it so a
// second "start" for the same job does not spawn a duplicate loop.
type Group struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewGroup() *Group {
	return &Group{tasks: make(map[string]*Task)}
}

// Start runs task under key unless a task for key is still running.
// It reports whether task was started.
func (g *Group) Start(ctx context.Context, key string, task *Task) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.tasks[key]; ok {
		select {
		case <-existing.Done():
		default:
			return false, nil
		}
	}

	if err := task.Start(ctx); err != nil {
		return false, err
	}
	g.tasks[key] = task

	go func() {
		<-task.Done()
		g.mu.Lock()
		if g.tasks[key] == task {
			delete(g.tasks, key)
		}
		g.mu.Unlock()
	}()
	return true, nil
}

func (g *Group) Running(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.tasks[key]
	return ok
}

func (g *Group) Stop(key string) {
	g.mu.Lock()
	task, ok := g.tasks[key]
	g.mu.Unlock()
	if ok {
		task.Stop()
	}
}

// StopAll stops every running task and waits for them.
func (g *Group) StopAll() {
	g.mu.Lock()
	tasks := make([]*Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		tasks = append(tasks, t)
	}
	g.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}
