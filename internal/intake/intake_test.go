package intake

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func samplePNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)))).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Accept", func() {
	var (
		name         string
		data         []byte
		declaredType string
		doc          *Document
		err          error
	)

	BeforeEach(func() {
		declaredType = ""
	})

	JustBeforeEach(func() {
		doc, err = Accept(name, data, declaredType)
	})

	When("the file is a PNG", func() {
		BeforeEach(func() {
			name = "bill.png"
			data = samplePNG()
		})

		It("accepts it with the sniffed type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.MimeType).To(Equal("image/png"))
			Expect(doc.IsPDF()).To(BeFalse())
			Expect(doc.Pages).To(BeZero())
		})
	})

	When("the file is a valid PDF", func() {
		BeforeEach(func() {
			name = "invoice.pdf"
			data = minimalPDF()
		})

		It("accepts it and counts the pages", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.IsPDF()).To(BeTrue())
			Expect(doc.Pages).To(Equal(1))
		})
	})

	When("the file claims to be a PDF but is not", func() {
		BeforeEach(func() {
			name = "broken.pdf"
			data = []byte("hello")
			declaredType = "application/pdf"
		})

		It("returns ErrInvalidPDF", func() {
			Expect(err).To(MatchError(ErrInvalidPDF))
		})
	})

	When("the file is plain text", func() {
		BeforeEach(func() {
			name = "notes.txt"
			data = []byte("just some text")
		})

		It("returns ErrUnsupportedType", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
			Expect(Notice(err)).To(Equal("Please upload an image file (JPG, PNG) or PDF."))
		})
	})

	When("the file is empty", func() {
		BeforeEach(func() {
			name = "empty.png"
			data = nil
		})

		It("returns ErrEmptyFile", func() {
			Expect(err).To(MatchError(ErrEmptyFile))
		})
	})

	When("the declared type is an image", func() {
		BeforeEach(func() {
			name = "photo"
			data = []byte("opaque bytes")
			declaredType = "IMAGE/HEIC"
		})

		It("trusts the declared type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.MimeType).To(Equal("image/heic"))
		})
	})
})

var _ = Describe("DetectType", func() {
	DescribeTable("falls back to the file extension for unknown content",
		func(name, expected string) {
			Expect(DetectType(name, []byte{0x00, 0x01, 0x02}, "")).To(Equal(expected))
		},
		Entry("jpg", "scan.JPG", "image/jpeg"),
		Entry("heic", "IMG_0001.heic", "image/heic"),
		Entry("pdf", "lr.pdf", "application/pdf"),
		Entry("unknown", "archive.bin", "application/octet-stream"),
	)
})

var _ = Describe("Supported", func() {
	It("accepts images and PDFs only", func() {
		Expect(Supported("image/webp")).To(BeTrue())
		Expect(Supported("application/pdf")).To(BeTrue())
		Expect(Supported("text/plain")).To(BeFalse())
	})
})

var _ = Describe("ReadFile", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads a document from disk", func() {
		path := filepath.Join(dir, "bill.png")
		Expect(os.WriteFile(path, samplePNG(), 0644)).To(Succeed())
		doc, err := ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Name).To(Equal("bill.png"))
		Expect(doc.MimeType).To(Equal("image/png"))
	})

	It("fails for a missing file", func() {
		_, err := ReadFile(filepath.Join(dir, "missing.png"))
		Expect(err).To(HaveOccurred())
	})

	It("fails for a directory", func() {
		_, err := ReadFile(dir)
		Expect(err).To(HaveOccurred())
	})
})
