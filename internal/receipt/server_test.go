package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/burse-app/burse/internal/extraction"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *mockExtractor
		service     *Service
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = &mockExtractor{
			result: extraction.Result{
				TotalAmount: floatPtr(42.75),
				VendorName:  strPtr("Walgreens"),
				Date:        strPtr("2024-03-20"),
				Confidence:  extraction.ConfidenceHigh,
			},
		}
		service = NewService(db, extractor, storage)
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	uploadReceipt := func(filename string, content []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/receipts", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("handleIndex", func() {
		It("serves the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Burse"))
		})
	})

	Describe("handleUploadReceipt", func() {
		When("the upload succeeds", func() {
			var (
				resp    *http.Response
				receipt Receipt
			)

			BeforeEach(func() {
				resp = uploadReceipt("receipt.jpg", []byte("fake image"))
				defer resp.Body.Close()
				Expect(json.NewDecoder(resp.Body).Decode(&receipt)).To(Succeed())
			})

			It("returns 201", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			})

			It("returns the processed receipt", func() {
				Expect(receipt.Status).To(Equal(StatusDone))
				Expect(*receipt.TotalAmount).To(Equal(42.75))
				Expect(*receipt.VendorName).To(Equal("Walgreens"))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.err = &extraction.Error{Kind: extraction.KindRateLimited}
			})

			It("still returns 201 with the receipt in the error state", func() {
				resp := uploadReceipt("receipt.jpg", []byte("fake image"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var receipt Receipt
				Expect(json.NewDecoder(resp.Body).Decode(&receipt)).To(Succeed())
				Expect(receipt.Status).To(Equal(StatusError))
				Expect(*receipt.ErrorMessage).To(Equal("Rate limited. Try again later."))
			})
		})

		When("no file is attached", func() {
			It("returns 400", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.Close()).To(Succeed())

				req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/receipts", body)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", writer.FormDataContentType())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListReceipts", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Status: StatusDone}
			db.receipts["id2"] = &Receipt{ID: "id2", Status: StatusPending}
		})

		It("returns all receipts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipts []*Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(2))
		})
	})

	Describe("handleGetReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Status: StatusDone}
		})

		It("returns the receipt", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipt Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipt)).To(Succeed())
			Expect(receipt.ID).To(Equal("id1"))
		})

		It("returns 404 for unknown receipts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleUpdateReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Status: StatusDone}
		})

		It("applies review edits", func() {
			payload := []byte(`{"total_amount":19.99,"vendor_name":"Aldi"}`)
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/receipts/id1", bytes.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipt Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipt)).To(Succeed())
			Expect(*receipt.TotalAmount).To(Equal(19.99))
			Expect(*receipt.VendorName).To(Equal("Aldi"))
		})

		It("rejects malformed bodies", func() {
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/receipts/id1", bytes.NewReader([]byte("{")))
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleDeleteReceipt", func() {
		BeforeEach(func() {
			name, err := storage.Save(".jpg", []byte("image"))
			Expect(err).NotTo(HaveOccurred())
			db.receipts["id1"] = &Receipt{ID: "id1", ImagePath: name}
		})

		It("removes the receipt", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})
	})

	Describe("handleGetReceiptFile", func() {
		BeforeEach(func() {
			name, err := storage.Save(".png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())
			db.receipts["id1"] = &Receipt{ID: "id1", ImagePath: name, ContentType: "image/png"}
		})

		It("serves the stored image", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			setupServer()
		})

		It("rejects unauthenticated requests", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
