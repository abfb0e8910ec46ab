package pipeline

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

var _ = Describe("Cache", func() {
	var (
		clock *fakeClock
		cache *Cache
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
		cache = NewCacheWithDeps(3, time.Hour, clock)
	})

	It("returns stored records", func() {
		record := &receipt.Record{MerchantName: "WALMART"}
		cache.Put("k1", record)

		got, ok := cache.Get("k1")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(record))
	})

	It("misses on unknown keys", func() {
		_, ok := cache.Get("nope")
		Expect(ok).To(BeFalse())
	})

	When("an entry outlives the TTL", func() {
		It("expires on read", func() {
			cache.Put("k1", &receipt.Record{})
			clock.Advance(time.Hour + time.Minute)

			_, ok := cache.Get("k1")
			Expect(ok).To(BeFalse())
			Expect(cache.Len()).To(BeZero())
		})
	})

	When("the entry bound is reached", func() {
		It("evicts the oldest entry", func() {
			for i := 0; i < 3; i++ {
				cache.Put(fmt.Sprintf("k%d", i), &receipt.Record{})
				clock.Advance(time.Minute)
			}
			cache.Put("k3", &receipt.Record{})

			Expect(cache.Len()).To(Equal(3))
			_, ok := cache.Get("k0")
			Expect(ok).To(BeFalse())
			_, ok = cache.Get("k3")
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Clear", func() {
		It("drops everything", func() {
			cache.Put("k1", &receipt.Record{})
			cache.Put("k2", &receipt.Record{})
			cache.Clear()

			Expect(cache.Len()).To(BeZero())
		})
	})
})
