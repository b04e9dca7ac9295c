package syncproto

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid connection state transition")

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// Lifecycle is the connection state machine:
//
//	disconnected -> connecting -> connected
//	connected -> reconnecting -> connecting      (transport lost)
//	connecting -> reconnecting -> connecting     (dial failed, retries left)
//	connecting -> disconnected                   (dial failed, retries exhausted)
//
// Every failed dial counts as one consecutive failure. Once MaxAttempts
// consecutive dials have failed the machine rests in disconnected and
// Exhausted reports true until the next explicit Connect. A lost connection
// is not itself a failure: it resets the count and schedules the first
// reconnect dial after BaseDelay, so a loss always gets MaxAttempts dials.
// Attempt n of a sequence waits n*BaseDelay.
type Lifecycle struct {
	state       ConnState
	failures    int
	recovering  bool // the current sequence started with a lost connection
	exhausted   bool
	maxAttempts int
	baseDelay   time.Duration
}

func NewLifecycle(maxAttempts int, baseDelay time.Duration) *Lifecycle {
	return &Lifecycle{state: StateDisconnected, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (l *Lifecycle) State() ConnState { return l.state }

// Failures is the number of consecutive failures since the last successful
// connection.
func (l *Lifecycle) Failures() int { return l.failures }

func (l *Lifecycle) Exhausted() bool { return l.exhausted }

// Connect starts a fresh connection attempt from disconnected.
func (l *Lifecycle) Connect() error {
	if l.state != StateDisconnected {
		return l.invalid("connect")
	}
	l.state = StateConnecting
	l.failures = 0
	l.recovering = false
	l.exhausted = false
	return nil
}

// Opened records a successful dial.
func (l *Lifecycle) Opened() error {
	if l.state != StateConnecting {
		return l.invalid("open")
	}
	l.state = StateConnected
	l.failures = 0
	l.recovering = false
	return nil
}

// DialFailed records a failed dial. When retry is true the caller should
// call Retry after delay.
func (l *Lifecycle) DialFailed() (retry bool, delay time.Duration, err error) {
	if l.state != StateConnecting {
		return false, 0, l.invalid("dial failure")
	}
	return l.fail()
}

// Lost records that an established connection went away.
func (l *Lifecycle) Lost() (retry bool, delay time.Duration, err error) {
	if l.state != StateConnected {
		return false, 0, l.invalid("loss")
	}
	if l.maxAttempts <= 0 {
		l.state = StateDisconnected
		l.exhausted = true
		return false, 0, nil
	}
	l.state = StateReconnecting
	l.failures = 0
	l.recovering = true
	return true, l.baseDelay, nil
}

// Retry moves from reconnecting back to connecting.
func (l *Lifecycle) Retry() error {
	if l.state != StateReconnecting {
		return l.invalid("retry")
	}
	l.state = StateConnecting
	return nil
}

// Disconnect forces the machine to disconnected without marking it
// exhausted. It is used on explicit teardown.
func (l *Lifecycle) Disconnect() {
	l.state = StateDisconnected
	l.failures = 0
	l.recovering = false
}

func (l *Lifecycle) fail() (bool, time.Duration, error) {
	l.failures++
	if l.failures >= l.maxAttempts {
		l.state = StateDisconnected
		l.exhausted = true
		return false, 0, nil
	}
	l.state = StateReconnecting
	next := l.failures
	if l.recovering {
		next++
	}
	return true, time.Duration(next) * l.baseDelay, nil
}

func (l *Lifecycle) invalid(what string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, what, l.state)
}
