package scanning

import (
	"context"
	"errors"
	"io"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"

	"github.com/zombor/cfd-invoice/internal/bill"
)

// fakeGenerator records the parts it was called with
type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
	calls int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeCloser struct {
	closed int
}

func (f *fakeCloser) Close() error {
	f.closed++
	return nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

var _ = Describe("Gemini", func() {
	var (
		apiKey    string
		generator *fakeGenerator
		closer    *fakeCloser
		dials     []string
		scanner   *Gemini
		data      []byte
		mimeType  string
		record    *bill.Record
		err       error
	)

	BeforeEach(func() {
		apiKey = "test-key"
		generator = &fakeGenerator{resp: textResponse(invoiceJSON)}
		closer = &fakeCloser{}
		dials = nil
		data = []byte("%PDF-1.4 fake")
		mimeType = "application/pdf"

		var buildErr error
		scanner, buildErr = NewGemini(
			func() string { return apiKey },
			"",
			DefaultContract(),
			withDialer(func(ctx context.Context, key string) (contentGenerator, io.Closer, error) {
				dials = append(dials, key)
				return generator, closer, nil
			}),
		)
		Expect(buildErr).NotTo(HaveOccurred())
	})

	JustBeforeEach(func() {
		record, err = scanner.Extract(context.Background(), data, mimeType)
	})

	When("the provider returns a valid record", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the parsed record", func() {
			Expect(record.DocumentType).To(Equal("Invoice"))
			Expect(record.DisplayTotal()).To(Equal("USD 500"))
		})

		It("should send the PDF without conversion", func() {
			Expect(generator.parts).To(HaveLen(1))
			Expect(generator.parts[0]).To(Equal(genai.Blob{MIMEType: "application/pdf", Data: data}))
		})

		It("should dial once with the configured key", func() {
			Expect(dials).To(Equal([]string{"test-key"}))
		})

		It("should reuse the client on the next call", func() {
			_, err := scanner.Extract(context.Background(), data, mimeType)
			Expect(err).NotTo(HaveOccurred())
			Expect(dials).To(HaveLen(1))
			Expect(generator.calls).To(Equal(2))
		})

		It("should redial when the key changes", func() {
			apiKey = "rotated-key"
			_, err := scanner.Extract(context.Background(), data, mimeType)
			Expect(err).NotTo(HaveOccurred())
			Expect(dials).To(Equal([]string{"test-key", "rotated-key"}))
			Expect(closer.closed).To(Equal(1))
		})
	})

	When("no credential is configured", func() {
		BeforeEach(func() {
			apiKey = "  "
		})

		It("returns ErrMissingCredential", func() {
			Expect(err).To(MatchError(ErrMissingCredential))
		})

		It("should never reach the provider", func() {
			Expect(dials).To(BeEmpty())
			Expect(generator.calls).To(BeZero())
		})
	})

	When("the provider reports an error", func() {
		BeforeEach(func() {
			generator.err = &googleapi.Error{Code: 400, Message: "Unsupported MIME type"}
		})

		It("surfaces the provider message", func() {
			Expect(Reason(err)).To(Equal("Unsupported MIME type"))
		})
	})

	When("the transport fails", func() {
		BeforeEach(func() {
			generator.err = errors.New("network unreachable")
		})

		It("returns a ProviderError", func() {
			var providerErr *ProviderError
			Expect(errors.As(err, &providerErr)).To(BeTrue())
			Expect(Reason(err)).To(Equal("network unreachable"))
		})
	})

	When("the provider returns no candidates", func() {
		BeforeEach(func() {
			generator.resp = &genai.GenerateContentResponse{}
		})

		It("returns ErrEmptyResponse", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the provider returns an empty text part", func() {
		BeforeEach(func() {
			generator.resp = textResponse("")
		})

		It("returns ErrEmptyResponse", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the provider returns malformed JSON", func() {
		BeforeEach(func() {
			generator.resp = textResponse(`{"documentType": "Invoice",`)
		})

		It("returns ErrMalformedResponse", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
			Expect(record).To(BeNil())
		})
	})

	Describe("Close", func() {
		It("should close the underlying client", func() {
			Expect(scanner.Close()).To(Succeed())
			Expect(closer.closed).To(Equal(1))
		})
	})
})

var _ = Describe("NewGemini", func() {
	It("requires a credential source", func() {
		_, err := NewGemini(nil, "", DefaultContract())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Gemini model configuration", func() {
	var contract Contract

	BeforeEach(func() {
		contract = DefaultContract()
	})

	It("asks for schema-constrained JSON at the contract temperature", func() {
		scanner, err := NewGemini(func() string { return "k" }, "", contract)
		Expect(err).NotTo(HaveOccurred())

		generator, closer, err := scanner.dial(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		prompted, ok := generator.(*promptedModel)
		Expect(ok).To(BeTrue())
		Expect(prompted.prompt).To(Equal(DefaultPrompt))

		model, ok := prompted.model.(*genai.GenerativeModel)
		Expect(ok).To(BeTrue())
		Expect(model.ResponseMIMEType).To(Equal("application/json"))
		Expect(model.Temperature).NotTo(BeNil())
		Expect(*model.Temperature).To(BeNumerically("~", 0.1, 1e-6))
		Expect(model.ResponseSchema).NotTo(BeNil())
		Expect(model.ResponseSchema.Required).To(ConsistOf("documentType", "totalAmount", "items"))
		Expect(model.SystemInstruction).NotTo(BeNil())
	})

	It("uses a configured temperature", func() {
		contract.Temperature = 0.4
		scanner, err := NewGemini(func() string { return "k" }, "", contract)
		Expect(err).NotTo(HaveOccurred())

		generator, closer, err := scanner.dial(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		model := generator.(*promptedModel).model.(*genai.GenerativeModel)
		Expect(*model.Temperature).To(BeNumerically("~", 0.4, 1e-6))
	})

	It("sends the prompt after the document", func() {
		generator := &fakeGenerator{resp: textResponse(invoiceJSON)}
		prompted := &promptedModel{model: generator, prompt: "read this bill"}

		_, err := prompted.GenerateContent(context.Background(), genai.Blob{MIMEType: "image/png", Data: []byte("png")})
		Expect(err).NotTo(HaveOccurred())

		Expect(generator.parts).To(HaveLen(2))
		Expect(generator.parts[0]).To(Equal(genai.Blob{MIMEType: "image/png", Data: []byte("png")}))
		Expect(generator.parts[1]).To(Equal(genai.Text("read this bill")))
	})
})
