package scanning

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
)

var _ = Describe("Reason", func() {
	DescribeTable("maps failures to user-facing messages",
		func(err error, expected string) {
			Expect(Reason(err)).To(Equal(expected))
		},
		Entry("nil", nil, ""),
		Entry("missing credential", ErrMissingCredential, MissingCredentialMessage),
		Entry("wrapped empty response", fmt.Errorf("parsing: %w", ErrEmptyResponse), EmptyResponseMessage),
		Entry("wrapped malformed response", fmt.Errorf("parsing: %w", ErrMalformedResponse), MalformedResponseMessage),
		Entry("provider message", &ProviderError{Message: "quota exceeded"}, "quota exceeded"),
		Entry("provider without message", &ProviderError{Err: errors.New("")}, FallbackMessage),
		Entry("plain transport error", errors.New("network unreachable"), "network unreachable"),
		Entry("blank error", errors.New("  "), FallbackMessage),
	)
})

var _ = Describe("newProviderError", func() {
	When("the error is a Google API error", func() {
		It("should use the API message", func() {
			err := newProviderError(fmt.Errorf("generating content: %w", &googleapi.Error{Code: 503, Message: "The model is overloaded."}))
			Expect(err.Message).To(Equal("The model is overloaded."))
			Expect(Reason(err)).To(Equal("The model is overloaded."))
		})
	})

	When("the error is a transport error", func() {
		It("should use the error text verbatim", func() {
			err := newProviderError(errors.New("network unreachable"))
			Expect(err.Message).To(Equal("network unreachable"))
		})

		It("should unwrap to the cause", func() {
			cause := errors.New("network unreachable")
			Expect(errors.Is(newProviderError(cause), cause)).To(BeTrue())
		})
	})
})
