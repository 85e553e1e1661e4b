// Package loader runs tasks under a concurrency ceiling in strict arrival
// order.
//
// A [Queue] holds a FIFO list of pending tasks and a running count. A task
// starts only while fewer than [Queue.MaxConcurrent] tasks are running;
// every completion hands its slot to the oldest pending task. There are no
// priorities.
//
//	q := loader.NewQueue(4)
//	defer q.Destroy()
//
//	img, err := loader.Enqueue(ctx, q, func(ctx context.Context) ([]byte, error) {
//	    return fetcher.Fetch(ctx, src)
//	})
//
// [Queue.Resize] changes the ceiling and starts queued work at once.
// [Queue.Destroy] rejects every pending and future task with a
// QUEUE_DESTROYED error; tasks already running finish normally.
//
// A pending task whose context ends is removed from the list and returns
// the context's error without ever running.
package loader
