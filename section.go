package tpool

import "go.uber.org/multierr"

// Section is a join barrier over a set of futures: the fork-join region ends
// when Wait returns. Use it as
//
//	var sec tpool.Section
//	defer sec.Wait()
//
// so no future outlives the region. A Section is not safe for concurrent use.
type Section struct {
	futures []Awaiter
	errs    []error
}

func (s *Section) Push(f Awaiter) {
	s.futures = append(s.futures, f)
}

func (s *Section) Len() int {
	return len(s.futures)
}

// Wait blocks until every pushed future is resolved and returns the first
// error in push order. Calling it again only waits for futures pushed since.
func (s *Section) Wait() error {
	s.wait()
	for _, err := range s.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// WaitAll is Wait reporting every error instead of the first.
func (s *Section) WaitAll() error {
	s.wait()
	return multierr.Combine(s.errs...)
}

func (s *Section) wait() {
	for _, f := range s.futures[len(s.errs):] {
		s.errs = append(s.errs, f.Err())
	}
}
