package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool fans queued tasks out over a fixed set of goroutines tied to a
// tomb. Tasks re-queue themselves by calling AddTask again, which is how the
// serving layer keeps long-lived connections cycling through the pool.
type WorkerPool struct {
	n     int            // number of workers
	tasks chan any       // task queue
	work  WorkerFunction // do work method
}

func NewWorkerPool(size uint) WorkerPool {
	return WorkerPool{
		n:     int(size),
		tasks: make(chan any, TASK_CHAN_SIZE),
	}
}

// Setup starts the full set of workers on the tomb and blocks until they are
// all launched. Workers exit when the tomb dies or their work function fails.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	for id := 0; id < pool.n; id++ {
		t.Go(func() error {
			return pool.worker(t, id)
		})
	}
}

// AddTask queues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Workers wait on tasks in the task queue and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := pool.work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
