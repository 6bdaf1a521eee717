package history

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrWeakRandomness is returned by a strict generator when no strong random source is available
var ErrWeakRandomness = errors.New("strong random source unavailable")

// IDGenerator generates unique IDs for history entries
type IDGenerator interface {
	Generate() (string, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// UUIDGenerator generates random (version 4) UUIDs. When the strong random source
// fails it degrades to a pseudo-random string plus a timestamp, unless Strict is set.
type UUIDGenerator struct {
	Strict bool
	// newRandom is uuid.NewRandom; tests replace it to simulate a broken source
	newRandom func() (uuid.UUID, error)
	clock     TimeSource
	logger    *slog.Logger
}

// NewUUIDGenerator creates a UUIDGenerator. clock stamps weak ids; nil uses the wall clock.
func NewUUIDGenerator(strict bool, clock TimeSource) *UUIDGenerator {
	if clock == nil {
		clock = &defaultTimeSource{}
	}
	return &UUIDGenerator{
		Strict:    strict,
		newRandom: uuid.NewRandom,
		clock:     clock,
		logger:    slog.Default(),
	}
}

// Generate returns a new unique ID
func (g *UUIDGenerator) Generate() (string, error) {
	id, err := g.newRandom()
	if err == nil {
		return id.String(), nil
	}
	if g.Strict {
		return "", fmt.Errorf("%w: %v", ErrWeakRandomness, err)
	}

	// Uniqueness is only practical here, not guaranteed
	g.logger.Warn("Falling back to weak history id", "error", err)
	return weakID(g.clock.Now()), nil
}

// weakID is a base36 pseudo-random string followed by the base36 unix-ms timestamp
func weakID(now time.Time) string {
	return strconv.FormatUint(rand.Uint64(), 36) + strconv.FormatInt(now.UnixMilli(), 36)
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}
