package tpool_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	"github.com/shandialamp/tpool"
)

var _ = Describe("Pool", func() {
	var p *tpool.Pool

	newPool := func(workers int) *tpool.Pool {
		pool, err := tpool.NewPoolWithConfig(tpool.PoolConfig{Workers: workers})
		Expect(err).NotTo(HaveOccurred())
		return pool
	}

	AfterEach(func() {
		if p != nil {
			Expect(p.Close()).To(Succeed())
			p = nil
		}
	})

	Describe("Close", func() {
		It("should not leak goroutines across create and close cycles", func() {
			baseline := runtime.NumGoroutine()

			for i := 0; i < 20; i++ {
				pool := newPool(4)
				Expect(pool.LoopI(100, 3, func(begin, end int) error { return nil })).To(Succeed())
				Expect(pool.Close()).To(Succeed())
			}

			Eventually(runtime.NumGoroutine, 2*time.Second, 20*time.Millisecond).
				Should(BeNumerically("<=", baseline+2))
		})

		It("should wait for tasks that are already running", func() {
			p = newPool(2)

			started := make(chan struct{})
			var finished atomic.Bool
			fut := p.Enqueue(func() error {
				close(started)
				time.Sleep(50 * time.Millisecond)
				finished.Store(true)
				return nil
			})
			Eventually(started).Should(BeClosed())

			closed := make(chan struct{})
			go func() {
				defer close(closed)
				_ = p.Close()
			}()

			Consistently(closed, 20*time.Millisecond).ShouldNot(BeClosed())
			Eventually(closed, 2*time.Second).Should(BeClosed())
			Expect(finished.Load()).To(BeTrue())
			Expect(fut.Err()).NotTo(HaveOccurred())
		})

		It("should resolve queued tasks with ErrPoolClosed", func() {
			p = newPool(1)

			release := make(chan struct{})
			started := make(chan struct{})
			p.Enqueue(func() error {
				close(started)
				<-release
				return nil
			})
			Eventually(started).Should(BeClosed())

			queued := p.Enqueue(func() error { return nil })
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(release)
			}()
			Expect(p.Close()).To(Succeed())

			Eventually(queued.Done()).Should(BeClosed())
			Expect(errors.Is(queued.Err(), tpool.ErrPoolClosed)).To(BeTrue())
			Expect(p.Stats().Dropped).To(BeEquivalentTo(1))
		})
	})

	Describe("Activate", func() {
		It("should stay consistent under concurrent enqueue and resize", func() {
			p = newPool(4)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var ran atomic.Int64
			g, ctx := errgroup.WithContext(ctx)
			for i := 0; i < 4; i++ {
				g.Go(func() error {
					var sec tpool.Section
					for j := 0; j < 250; j++ {
						sec.Push(p.Enqueue(func() error {
							ran.Add(1)
							return nil
						}))
					}
					return sec.Wait()
				})
			}
			g.Go(func() error {
				for i := 0; ctx.Err() == nil && ran.Load() < 1000; i++ {
					p.Activate(i%4 + 1)
					runtime.Gosched()
				}
				return nil
			})

			Expect(g.Wait()).To(Succeed())
			Expect(ran.Load()).To(BeEquivalentTo(1000))
			Expect(p.Stats().Completed).To(BeEquivalentTo(1000))
		})

		It("should let a parallel loop finish on a single active worker", func() {
			p = newPool(4)
			Expect(p.Activate(1)).To(Equal(1))

			results := make([]int64, 1000)
			Expect(p.LoopI(1000, 7, func(begin, end int) error {
				for i := begin; i < end; i++ {
					results[i] = int64(i * i)
				}
				return nil
			})).To(Succeed())

			var sum int64
			for _, r := range results {
				sum += r
			}
			Expect(sum).To(BeEquivalentTo(332833500))
		})
	})
})
