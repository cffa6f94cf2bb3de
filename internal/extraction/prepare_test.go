package extraction

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodePNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func decodePayload(payload PreparedPayload) image.Image {
	data, err := base64.StdEncoding.DecodeString(payload.Data)
	Expect(err).NotTo(HaveOccurred())
	img, err := jpeg.Decode(bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	return img
}

var _ = Describe("Prepare", func() {
	When("the source already fits within bounds", func() {
		var payload PreparedPayload

		BeforeEach(func() {
			var err error
			payload, err = Prepare(encodePNG(640, 480), "image/png")
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports a JPEG payload", func() {
			Expect(payload.MIMEType).To(Equal("image/jpeg"))
		})

		It("does not upscale", func() {
			img := decodePayload(payload)
			Expect(img.Bounds().Dx()).To(Equal(640))
			Expect(img.Bounds().Dy()).To(Equal(480))
		})
	})

	When("the source is wider than the bound", func() {
		It("downscales the width to 1024 preserving aspect ratio", func() {
			payload, err := Prepare(encodePNG(2048, 1024), "image/png")
			Expect(err).NotTo(HaveOccurred())

			img := decodePayload(payload)
			Expect(img.Bounds().Dx()).To(Equal(1024))
			Expect(img.Bounds().Dy()).To(Equal(512))
		})
	})

	When("the source is taller than the bound", func() {
		It("downscales the height to 1024 preserving aspect ratio", func() {
			payload, err := Prepare(encodePNG(750, 3000), "image/png")
			Expect(err).NotTo(HaveOccurred())

			img := decodePayload(payload)
			Expect(img.Bounds().Dy()).To(Equal(1024))
			Expect(img.Bounds().Dx()).To(Equal(256))
		})
	})

	When("the content type lies about the format", func() {
		It("still decodes by sniffing the bytes", func() {
			_, err := Prepare(encodePNG(10, 10), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the source is corrupt", func() {
		It("returns an error", func() {
			_, err := Prepare([]byte("definitely not an image"), "image/jpeg")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the source is empty", func() {
		It("returns an error", func() {
			_, err := Prepare(nil, "image/jpeg")
			Expect(err).To(HaveOccurred())
		})
	})

	It("is deterministic for the same source bytes", func() {
		src := encodePNG(1500, 900)
		first, err := Prepare(src, "image/png")
		Expect(err).NotTo(HaveOccurred())
		second, err := Prepare(src, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})
})
