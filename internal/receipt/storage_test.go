package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tempDir string
		storage *LocalStorage
		err     error
	)

	BeforeEach(func() {
		tempDir, err = os.MkdirTemp("", "burse-storage-test-*")
		Expect(err).NotTo(HaveOccurred())

		storage, err = NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("NewLocalStorage", func() {
		It("creates the storage directory", func() {
			info, statErr := os.Stat(filepath.Join(tempDir, "receipts"))
			Expect(statErr).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("Save", func() {
		It("stores under a fresh name with the given extension", func() {
			name, saveErr := storage.Save(".jpg", []byte("image data"))
			Expect(saveErr).NotTo(HaveOccurred())
			Expect(name).To(HaveSuffix(".jpg"))

			data, readErr := os.ReadFile(filepath.Join(tempDir, "receipts", name))
			Expect(readErr).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image data")))
		})

		It("never reuses names", func() {
			first, err := storage.Save(".jpg", []byte("a"))
			Expect(err).NotTo(HaveOccurred())
			second, err := storage.Save(".jpg", []byte("b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
		})
	})

	Describe("Get", func() {
		It("returns stored data", func() {
			name, err := storage.Save(".png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, getErr := storage.Get(name)
			Expect(getErr).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png bytes")))
		})

		It("errors for unknown names", func() {
			_, err := storage.Get("missing.jpg")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("removes stored data", func() {
			name, err := storage.Save(".jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(name)).To(Succeed())

			_, getErr := storage.Get(name)
			Expect(getErr).To(HaveOccurred())
		})

		It("errors for unknown names", func() {
			Expect(storage.Delete("missing.jpg")).To(HaveOccurred())
		})
	})
})
