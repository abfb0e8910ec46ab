package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// multipartUpload builds a multipart body with one file field.
func multipartUpload(filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		extractor *mockExtractor
		store     *mockStore
		service   *Service
		storage   Storage
		server    *Server
		recorder  *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
		registry := extraction.NewRegistryWithDeps(5*time.Minute, clock)
		extractor = &mockExtractor{name: "primary", text: sampleText, conf: 90}
		registry.Register(extractor, 1)

		store = newMockStore()
		service = NewService(registry, store, Config{QueueSize: 8})
		service.Start()
		DeferCleanup(service.Stop)

		var err error
		storage, err = NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(service, storage, BasicAuth{})
		recorder = httptest.NewRecorder()
	})

	Describe("POST /api/scans", func() {
		It("scans an uploaded image and returns the record", func() {
			body, contentType := multipartUpload("receipt.jpg", make([]byte, 30<<10))
			req := httptest.NewRequest("POST", "/api/scans", body)
			req.Header.Set("Content-Type", contentType)

			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var record receipt.Record
			Expect(json.Unmarshal(recorder.Body.Bytes(), &record)).To(Succeed())
			Expect(record.MerchantName).To(Equal("WALMART"))
			Expect(record.ExtractorName).To(Equal("primary"))
		})

		It("rejects requests without a file", func() {
			emptyBody := &bytes.Buffer{}
			writer := multipart.NewWriter(emptyBody)
			Expect(writer.Close()).To(Succeed())
			req := httptest.NewRequest("POST", "/api/scans", emptyBody)
			req.Header.Set("Content-Type", writer.FormDataContentType())

			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		When("every extractor fails", func() {
			BeforeEach(func() {
				extractor.err = errors.New("boom")
			})

			It("returns 422 so the client can prompt a retake", func() {
				body, contentType := multipartUpload("receipt.jpg", make([]byte, 30<<10))
				req := httptest.NewRequest("POST", "/api/scans", body)
				req.Header.Set("Content-Type", contentType)

				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
			})
		})
	})

	Describe("GET /api/records", func() {
		It("lists the offline store", func() {
			Expect(store.Put("k", &receipt.Record{MerchantName: "TARGET", Date: "2024-01-01"})).To(Succeed())

			req := httptest.NewRequest("GET", "/api/records", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var records []*receipt.Record
			Expect(json.Unmarshal(recorder.Body.Bytes(), &records)).To(Succeed())
			Expect(records).To(HaveLen(1))
			Expect(records[0].MerchantName).To(Equal("TARGET"))
		})
	})

	Describe("DELETE /api/cache", func() {
		It("clears the cache", func() {
			req := httptest.NewRequest("DELETE", "/api/cache", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusNoContent))
		})
	})

	Describe("GET /api/extractors", func() {
		It("reports the chain status", func() {
			req := httptest.NewRequest("GET", "/api/extractors", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var statuses []extraction.ExtractorStatus
			Expect(json.Unmarshal(recorder.Body.Bytes(), &statuses)).To(Succeed())
			Expect(statuses).To(HaveLen(1))
			Expect(statuses[0].Name).To(Equal("primary"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			server = NewServer(service, storage, BasicAuth{Username: "user", Password: "pass"})
		})

		It("rejects unauthenticated requests", func() {
			req := httptest.NewRequest("GET", "/api/records", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/records", nil)
			req.SetBasicAuth("user", "pass")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/records", nil)
			req.SetBasicAuth("user", "wrong")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})

var _ = Describe("Service lifecycle", func() {
	It("leaves queued work unprocessed after Stop", func() {
		registry := extraction.NewRegistryWithDeps(time.Minute, &fakeClock{now: time.Now()})
		registry.Register(&mockExtractor{name: "x", text: sampleText, conf: 90}, 1)
		service := NewService(registry, newMockStore(), Config{QueueSize: 1})
		service.Start()
		service.Stop()
		// Let the worker goroutine observe the stop before submitting.
		time.Sleep(10 * time.Millisecond)

		imagePath := filepath.Join(GinkgoT().TempDir(), "receipt.jpg")
		Expect(os.WriteFile(imagePath, make([]byte, 1024), 0644)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := service.Scan(ctx, imagePath)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})
