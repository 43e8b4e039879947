package search

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// ErrCircuitOpen is returned while the breaker skips index writes
var ErrCircuitOpen = errors.New("search index unavailable, circuit open")

// DocumentWriter is the write side of the search client
type DocumentWriter interface {
	IndexProperty(property *models.Property) error
	DeleteProperty(id string) error
}

// CircuitBreaker stops per-request index writes after repeated failures so
// property saves do not each wait on an unreachable search engine. The
// nightly reindex brings the index back in line once it recovers.
type CircuitBreaker struct {
	next             DocumentWriter
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	consecutiveFailures int
	skipped             int
	isOpen              bool
	lastFailureTime     time.Time

	mutex sync.Mutex
}

// NewCircuitBreaker wraps next. It opens after failureThreshold consecutive
// failures and lets one write through again after resetTimeout.
func NewCircuitBreaker(next DocumentWriter, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &CircuitBreaker{
		next:             next,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// IndexProperty forwards to the wrapped client unless the circuit is open
func (cb *CircuitBreaker) IndexProperty(property *models.Property) error {
	if !cb.canProceed() {
		return ErrCircuitOpen
	}
	err := cb.next.IndexProperty(property)
	cb.record(err)
	return err
}

// DeleteProperty forwards to the wrapped client unless the circuit is open
func (cb *CircuitBreaker) DeleteProperty(id string) error {
	if !cb.canProceed() {
		return ErrCircuitOpen
	}
	err := cb.next.DeleteProperty(id)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err == nil {
		if cb.isOpen {
			log.Printf("[search] circuit closed after %d skipped writes", cb.skipped)
		}
		cb.consecutiveFailures = 0
		cb.skipped = 0
		cb.isOpen = false
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()
	if cb.consecutiveFailures >= cb.failureThreshold && !cb.isOpen {
		cb.isOpen = true
		log.Printf("[search] circuit open after %d consecutive failures, retry after %v: %v",
			cb.consecutiveFailures, cb.resetTimeout, err)
	}
}

// canProceed reports whether a write may go through. After resetTimeout one
// trial write is allowed; its result decides whether the circuit closes.
func (cb *CircuitBreaker) canProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		// half-open: push the next trial out by another timeout
		cb.lastFailureTime = cb.now()
		return true
	}
	cb.skipped++
	return false
}

// Status returns whether the circuit is open and how many writes it skipped
func (cb *CircuitBreaker) Status() (isOpen bool, consecutiveFailures, skipped int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen, cb.consecutiveFailures, cb.skipped
}
