package tpool

// granule is one enqueued slice [begin, end) of a parallel loop, tagged with
// the worker slot whose range it was carved from.
type granule struct {
	begin, end, worker int
}

// split partitions [0, size) into at most workers contiguous ranges of
// ceil(size/workers) elements, then each range into granules of at most
// chunk elements. chunk < 1 keeps each range whole.
func split(size, chunk, workers int) []granule {
	if size <= 0 {
		return nil
	}
	workers = max(workers, 1)
	base := size / workers
	if size%workers != 0 {
		base++
	}
	if chunk < 1 {
		chunk = base
	}
	chunk = min(chunk, base)

	perSlot := base / chunk
	if base%chunk != 0 {
		perSlot++
	}
	granules := make([]granule, 0, min(workers, size)*perSlot)
	begin := 0
	for w := 0; w < workers; w++ {
		// ranges are contiguous and increasing, so the first empty one ends them
		if begin >= size {
			break
		}
		end := size
		if size-begin > base {
			end = begin + base
		}
		for b := begin; b < end; {
			e := end
			if end-b > chunk {
				e = b + chunk
			}
			granules = append(granules, granule{begin: b, end: e, worker: w})
			b = e
		}
		begin = end
	}
	return granules
}

// LoopIT runs op over [0, size) on the pool and returns once every granule has
// finished. Each granule covers at most chunk indices; worker is the slot in
// [0, ActiveWorkers()) the granule was assigned to. Granules of the same slot
// may run concurrently when chunk splits a slot's range.
//
// The first error (or panic, as *PanicError) is returned after all granules
// are done.
func (p *Pool) LoopIT(size, chunk int, op func(begin, end, worker int) error) error {
	var sec Section
	for _, g := range split(size, chunk, p.ActiveWorkers()) {
		g := g
		sec.Push(p.Enqueue(func() error {
			return op(g.begin, g.end, g.worker)
		}))
	}
	return sec.Wait()
}

// LoopI is LoopIT without the worker slot.
func (p *Pool) LoopI(size, chunk int, op func(begin, end int) error) error {
	return p.LoopIT(size, chunk, func(begin, end, _ int) error {
		return op(begin, end)
	})
}

// EachIT calls op once per index with one granule per worker slot, so the
// worker argument is exclusive to the goroutine running it.
func (p *Pool) EachIT(size int, op func(i, worker int) error) error {
	return p.LoopIT(size, 0, func(begin, end, worker int) error {
		for i := begin; i < end; i++ {
			if err := op(i, worker); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pool) EachI(size int, op func(i int) error) error {
	return p.EachIT(size, func(i, _ int) error {
		return op(i)
	})
}

// Reduce computes op over every granule of [0, size) in parallel and folds the
// partial results with merge, serially and in index order, starting at zero.
func Reduce[T any](p *Pool, size, chunk int, zero T, op func(begin, end int) (T, error), merge func(acc, part T) T) (T, error) {
	granules := split(size, chunk, p.ActiveWorkers())
	parts := make([]T, len(granules))

	var sec Section
	for k, g := range granules {
		k, g := k, g
		sec.Push(p.Enqueue(func() error {
			part, err := op(g.begin, g.end)
			parts[k] = part
			return err
		}))
	}
	if err := sec.Wait(); err != nil {
		return zero, err
	}

	acc := zero
	for _, part := range parts {
		acc = merge(acc, part)
	}
	return acc, nil
}
