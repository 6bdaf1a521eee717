package history

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UUIDGenerator", func() {
	var (
		generator *UUIDGenerator
		clock     *fixedClock
	)

	BeforeEach(func() {
		clock = &fixedClock{now: time.UnixMilli(1700000000000)}
		generator = NewUUIDGenerator(false, clock)
	})

	It("generates distinct version 4 UUIDs", func() {
		a, err := generator.Generate()
		Expect(err).NotTo(HaveOccurred())
		b, err := generator.Generate()
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
		parsed, err := uuid.Parse(a)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Version()).To(Equal(uuid.Version(4)))
	})

	When("the strong random source fails", func() {
		BeforeEach(func() {
			generator.newRandom = func() (uuid.UUID, error) {
				return uuid.Nil, errors.New("entropy exhausted")
			}
		})

		It("falls back to a base36 id", func() {
			id, err := generator.Generate()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(MatchRegexp(`^[0-9a-z]+$`))
		})

		It("stamps the fallback id with the injected clock", func() {
			id, err := generator.Generate()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(HaveSuffix("loyw3v28"))
		})

		When("strict mode is on", func() {
			BeforeEach(func() {
				generator.Strict = true
			})

			It("fails fast", func() {
				_, err := generator.Generate()
				Expect(err).To(MatchError(ErrWeakRandomness))
			})
		})
	})
})

var _ = Describe("weakID", func() {
	It("ends with the base36 timestamp", func() {
		now := time.UnixMilli(1700000000000)
		Expect(weakID(now)).To(MatchRegexp(regexp.QuoteMeta("loyw3v28") + "$"))
	})
})
