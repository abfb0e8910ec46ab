package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// testPNG returns a valid 1x1 PNG so image normalization succeeds.
func testPNG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func conf(v float64) *float64 {
	return &v
}

var _ = Describe("VisionHTTP", func() {
	var (
		handler   http.HandlerFunc
		server    *httptest.Server
		extractor *VisionHTTP
		result    Result
		err       error
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(visionResponse{
				RawAnswerText: "WALMART\nTotal: 42.50",
				Confidence:    conf(0.93),
			})
		}
	})

	JustBeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(server.Close)

		extractor, err = NewVisionHTTP(server.URL, "test-key")
		Expect(err).NotTo(HaveOccurred())

		result, err = extractor.Extract(context.Background(), testPNG(), "image/png")
	})

	When("the service responds with text and confidence", func() {
		It("succeeds", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the text unchanged", func() {
			Expect(result.Text).To(Equal("WALMART\nTotal: 42.50"))
		})

		It("scales confidence to 0-100", func() {
			Expect(result.Confidence).To(Equal(93))
		})
	})

	When("the service sends the image and credentials", func() {
		var (
			gotAuth string
			gotBody visionRequest
		)

		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				json.NewDecoder(r.Body).Decode(&gotBody)
				json.NewEncoder(w).Encode(visionResponse{RawAnswerText: "ok", Confidence: conf(0.5)})
			}
		})

		It("uses a bearer token", func() {
			Expect(gotAuth).To(Equal("Bearer test-key"))
		})

		It("base64-encodes the image payload", func() {
			Expect(gotBody.Image).NotTo(BeEmpty())
			Expect(gotBody.Locale).To(Equal("en-US"))
		})
	})

	When("the service omits the confidence field", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(visionResponse{RawAnswerText: "some text"})
			}
		})

		It("defaults to a neutral confidence", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Confidence).To(Equal(50))
		})
	})

	When("the service reports zero confidence", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(visionResponse{RawAnswerText: "some text", Confidence: conf(0)})
			}
		})

		It("keeps the explicit zero", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Confidence).To(BeZero())
		})
	})

	When("the service returns a non-2xx status", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream quota exceeded", http.StatusTooManyRequests)
			}
		})

		It("fails the extraction", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 429"))
		})
	})

	When("the service returns a malformed body", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}
		})

		It("fails the extraction", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("the service returns empty text", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(visionResponse{Confidence: conf(0.9)})
			}
		})

		It("fails the extraction", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("NewVisionHTTP", func() {
	It("requires an endpoint", func() {
		_, err := NewVisionHTTP("", "key")
		Expect(err).To(HaveOccurred())
	})

	It("requires an API key", func() {
		_, err := NewVisionHTTP("https://ocr.example.com", "")
		Expect(err).To(HaveOccurred())
	})
})
