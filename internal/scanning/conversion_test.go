package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sampleGIF() []byte {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	Expect(gif.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("conversion", func() {
	Describe("normalizeMimeType", func() {
		DescribeTable("normalizes content types",
			func(in, out string) {
				Expect(normalizeMimeType(in)).To(Equal(out))
			},
			Entry("upper case", " IMAGE/PNG ", "image/png"),
			Entry("parameters", "application/pdf; charset=binary", "application/pdf"),
			Entry("jpg alias", "image/jpg", "image/jpeg"),
		)
	})

	Describe("payloadType", func() {
		heicData := []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00")

		It("trusts HEIC content over a JPEG label", func() {
			Expect(payloadType(heicData, "image/jpeg")).To(Equal("image/heic"))
		})

		It("folds HEIF into HEIC", func() {
			Expect(payloadType([]byte("opaque"), "image/HEIF")).To(Equal("image/heic"))
		})

		It("falls back to the normalized label", func() {
			Expect(payloadType([]byte("ftyp"), "Image/JPG; q=1")).To(Equal("image/jpeg"))
		})

		It("keeps mislabelled HEIC native for Gemini", func() {
			out, mimeType, err := prepareForGemini(heicData, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(heicData))
			Expect(mimeType).To(Equal("image/heic"))
		})
	})

	Describe("prepareForGemini", func() {
		It("passes native types through", func() {
			data := []byte("jpeg bytes")
			out, mimeType, err := prepareForGemini(data, "image/JPEG")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
			Expect(mimeType).To(Equal("image/jpeg"))
		})

		It("converts other images to PNG", func() {
			out, mimeType, err := prepareForGemini(sampleGIF(), "image/gif")
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
			_, format, decodeErr := image.Decode(bytes.NewReader(out))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})

		It("fails on undecodable images", func() {
			_, _, err := prepareForGemini([]byte("not an image"), "image/bmp")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RenderPreview", func() {
		It("returns PNG data as-is", func() {
			data := samplePNG()
			out, mimeType, err := RenderPreview(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
			Expect(mimeType).To(Equal("image/png"))
		})

		It("renders GIFs as PNG", func() {
			_, mimeType, err := RenderPreview(sampleGIF(), "image/gif")
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
		})

		It("fails on a broken PDF", func() {
			_, _, err := RenderPreview([]byte("not a pdf"), "application/pdf")
			Expect(err).To(HaveOccurred())
		})
	})
})
