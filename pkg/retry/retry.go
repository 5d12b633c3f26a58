// Package retry runs actions until they succeed or a strategy gives up.
package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier runs actions against a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier returns a Retrier for strategies. Without strategies it retries
// in a tight loop until the action succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(action Action) (uint, error) {
	return Retry(action, r...)
}

// Retry runs action until it succeeds or a strategy declines another attempt,
// returning the number of attempts made and the last error.
//
// Strategies are consulted in order and the first to decline ends the
// evaluation, so delaying strategies belong last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil || !allow(strategies, attempts, err) {
			return attempts, err
		}
	}
}

func allow(strategies []Strategy, attempts uint, err error) bool {
	for _, strategy := range strategies {
		if !strategy(attempts, err) {
			return false
		}
	}
	return true
}
