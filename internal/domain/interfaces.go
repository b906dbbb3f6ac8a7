package domain

import "context"

// QuoteProvider supplies current market quotes for a batch of symbols.
type QuoteProvider interface {
	// FetchQuotes returns one QuoteResult per requested symbol, never
	// omitting an entry. A failed lookup is reported in that entry's Err,
	// not as a batch failure: one symbol's transient network error must not
	// fail the batch for the others. Implementations own all I/O concerns
	// (timeouts, retries, cancellation via ctx); the valuation core never
	// reaches the network itself.
	FetchQuotes(ctx context.Context, symbols []string) map[string]QuoteResult
}
