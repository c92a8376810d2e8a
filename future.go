package tpool

// Awaiter is anything a Section can block on.
type Awaiter interface {
	Done() <-chan struct{}
	Err() error
}

// Future is the eventual outcome of one enqueued task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve must be called exactly once.
func (f *Future[T]) resolve(v T, err error) {
	f.value = v
	f.err = err
	close(f.done)
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished, was dropped, or panicked.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

func (f *Future[T]) Err() error {
	<-f.done
	return f.err
}
