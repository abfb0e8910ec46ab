package pipeline

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

var _ = Describe("BoltStore", func() {
	var store *BoltStore

	BeforeEach(func() {
		var err error
		store, err = NewBoltStore(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("Put and List", func() {
		It("round-trips records", func() {
			record := &receipt.Record{
				MerchantName:  "CVS PHARMACY",
				Amount:        25.99,
				Date:          "2024-01-15",
				Category:      "Pharmacy",
				Confidence:    90,
				ExtractorName: "gemini",
				Items: []receipt.LineItem{
					{Name: "IBUPROFEN", Quantity: 1, Price: 8.99},
				},
			}
			Expect(store.Put("1024-111", record)).To(Succeed())

			records, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(Equal(record))
		})

		It("sorts by receipt date descending", func() {
			Expect(store.Put("a", &receipt.Record{MerchantName: "OLD", Date: "2023-05-01"})).To(Succeed())
			Expect(store.Put("b", &receipt.Record{MerchantName: "NEW", Date: "2024-06-01"})).To(Succeed())
			Expect(store.Put("c", &receipt.Record{MerchantName: "MID", Date: "2024-01-15"})).To(Succeed())

			records, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].MerchantName).To(Equal("NEW"))
			Expect(records[1].MerchantName).To(Equal("MID"))
			Expect(records[2].MerchantName).To(Equal("OLD"))
		})

		It("returns an empty list for an empty store", func() {
			records, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Describe("ClearPrefix", func() {
		BeforeEach(func() {
			Expect(store.Put("100-1", &receipt.Record{Date: "2024-01-01"})).To(Succeed())
			Expect(store.Put("100-2", &receipt.Record{Date: "2024-01-02"})).To(Succeed())
			Expect(store.Put("200-1", &receipt.Record{Date: "2024-01-03"})).To(Succeed())
		})

		It("removes only matching keys", func() {
			Expect(store.ClearPrefix("100-")).To(Succeed())

			records, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("clears everything with an empty prefix", func() {
			Expect(store.ClearPrefix("")).To(Succeed())

			records, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})
})
