package extraction

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("normalizeImage", func() {
	When("the input is already PNG", func() {
		It("returns it unchanged", func() {
			data := testPNG()
			out, err := normalizeImage(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
		})
	})

	When("the input is JPEG", func() {
		It("converts to PNG", func() {
			var buf bytes.Buffer
			img := image.NewRGBA(image.Rect(0, 0, 2, 2))
			Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())

			out, err := normalizeImage(buf.Bytes(), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())

			_, err = png.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the input is not a decodable image", func() {
		It("fails", func() {
			_, err := normalizeImage([]byte("definitely not pixels"), "image/jpeg")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("detects the ftyp heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEIC(data, "application/octet-stream")).To(BeTrue())
	})

	It("detects HEIC from the MIME type alone", func() {
		Expect(isHEIC([]byte("short"), "image/heic")).To(BeTrue())
	})

	It("does not flag ordinary PNG data", func() {
		Expect(isHEIC(testPNG(), "image/png")).To(BeFalse())
	})
})
