package pipeline

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var storage *LocalStorage

	BeforeEach(func() {
		var err error
		storage, err = NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("saves and deletes files", func() {
		path, err := storage.Save("receipt.jpg", []byte("data"))
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("data")))

		Expect(storage.Delete(path)).To(Succeed())
		_, err = os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

var _ = Describe("sanitizeFilename", func() {
	It("strips special characters", func() {
		Expect(sanitizeFilename("IMG_1234 (1)!!.jpg")).To(Equal("IMG_1234 1.jpg"))
	})

	It("collapses whitespace", func() {
		Expect(sanitizeFilename("my    receipt.png")).To(Equal("my receipt.png"))
	})

	It("truncates long base names", func() {
		long := ""
		for i := 0; i < 80; i++ {
			long += "a"
		}
		Expect(len(sanitizeFilename(long + ".jpg"))).To(Equal(54))
	})

	It("falls back when nothing survives", func() {
		Expect(sanitizeFilename("!!!.pdf")).To(Equal("receipt.pdf"))
	})
})
