package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/pkg/retrier"
)

// ErrAccountTypeUnsupported signals that the venue has no wallet of the
// requested kind. The funding scan treats it as "not found" and moves
// to the next candidate; transport failures never map to it.
var ErrAccountTypeUnsupported = errors.New("account type not supported by venue")

// Exchange is the venue-connectivity collaborator consumed by the
// reconciliation core. The account type is always an explicit argument;
// adapters must not keep a mutable default-type mode.
type Exchange interface {
	Name() string
	FetchBalance(ctx context.Context, accountType entity.AccountType) (entity.RawBalances, error)
	FetchPositions(ctx context.Context) ([]entity.RawPosition, error)
	FetchClosedOrders(ctx context.Context, since time.Time) ([]entity.RawOrder, error)
	FetchFills(ctx context.Context, symbol string, since time.Time) ([]entity.RawFill, error)
	ListMarketCapabilities(ctx context.Context) ([]entity.MarketCapability, error)
}

// FetchError wraps a venue SDK failure with enough context for the
// caller to degrade that fetch to a zero contribution.
type FetchError struct {
	Venue string
	Op    string
	Scope string
	Err   error
}

func (e *FetchError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Venue, e.Op, e.Scope, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(venue, op, scope string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Venue: venue, Op: op, Scope: scope, Err: err}
}

func str(s string) *string { return &s }

// connectivityRetrier is the backoff policy shared by the adapters.
// Retries live here and only here; the reconciliation core never
// retries. Unsupported-account probes are terminal.
func connectivityRetrier() *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(300*time.Millisecond),
		retrier.WithRetryIf(func(err error) bool {
			return !errors.Is(err, ErrAccountTypeUnsupported)
		}),
	)
}
