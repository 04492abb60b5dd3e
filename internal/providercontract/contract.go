// Package providercontract defines the uniform provider surface: a
// tagged sum type over Historical (pull-driven) and Live
// (session-driven) variants, sharing a common capability set, with a
// GetData entry point that serves the historical variant. Small
// capability interfaces are preferred over one monolithic provider type.
package providercontract

import (
	"context"
	"errors"
	"fmt"

	"github.com/quasarhq/quasar/internal/model"
)

// ProviderType tags which variant a Provider implements.
type ProviderType string

const (
	ProviderTypeHistorical ProviderType = "HISTORICAL"
	ProviderTypeRealtime   ProviderType = "REALTIME"
	ProviderTypeIndex      ProviderType = "INDEX"
)

// ErrUnsupportedInterval is returned by a provider when asked to serve an
// interval it does not support.
var ErrUnsupportedInterval = errors.New("providercontract: unsupported interval")

// CredentialAccessor lazily decrypts and returns a provider's credential
// map on demand, under the hash the provider code was verified against.
// Implementations must not cache decrypted values beyond the provider
// instance's own lifetime (cleared on unload, per §5).
type CredentialAccessor func(ctx context.Context) (map[string]string, error)

// Provider is the capability set every provider exposes regardless of
// variant: identity, type tag, optional symbol discovery, and teardown.
type Provider interface {
	Name() string
	ProviderType() ProviderType
	GetAvailableSymbols(ctx context.Context) ([]model.SymbolInfo, error)
	Close(ctx context.Context) error
}

// HistoricalProvider is the pull-driven variant (§4.C): given one
// request, it yields bars lazily via the Next method of the returned
// BarSeq.
type HistoricalProvider interface {
	Provider
	// GetHistory returns bars for a single request, inclusive of both
	// endpoints, ordered oldest to newest. Implementations must return
	// ErrUnsupportedInterval for an interval they do not serve.
	GetHistory(ctx context.Context, req model.Req) (BarSeq, error)
}

// ManyHistoryProvider is the optional batched-efficiency override point
// (§4.C "may override get_history_many"): a historical provider that can
// serve multiple requests more efficiently than looping GetHistory.
type ManyHistoryProvider interface {
	HistoricalProvider
	GetHistoryMany(ctx context.Context, reqs []model.Req) (BarSeq, error)
}

// LiveProvider is the session-driven variant (§4.C): a WebSocket-backed
// provider whose internal connect/subscribe/unsubscribe/parse operations
// are implemented by the concrete provider, and whose public surface is
// "one bar per symbol from the most recent bounded listen window".
type LiveProvider interface {
	Provider
	Connect(ctx context.Context) (LiveSession, error)
}

// LiveSession is a single WebSocket session opened by LiveProvider.Connect.
// Implementations are responsible for their own wire format.
type LiveSession interface {
	Subscribe(ctx context.Context, interval string, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	// ReadMessage blocks until the next message is available or ctx is
	// done. It returns the raw message payload.
	ReadMessage(ctx context.Context) ([]byte, error)
	// ParseMessage parses a raw payload into zero or more bars.
	ParseMessage(msg []byte) ([]model.Bar, error)
	Close() error
}

// BarSeq is a pull iterator over bars, letting a historical provider
// perform I/O on demand rather than materializing its whole response.
// Next returns (bar, true, nil) while bars remain, (zero, false, nil) at
// natural end of sequence, or (zero, false, err) on upstream error.
type BarSeq interface {
	Next(ctx context.Context) (model.Bar, bool, error)
}

// sliceBarSeq adapts an in-memory slice of bars to BarSeq, for providers
// (and tests) that already have the full result set in hand.
type sliceBarSeq struct {
	bars []model.Bar
	idx  int
}

// NewSliceBarSeq wraps bars as a BarSeq.
func NewSliceBarSeq(bars []model.Bar) BarSeq {
	return &sliceBarSeq{bars: bars}
}

func (s *sliceBarSeq) Next(ctx context.Context) (model.Bar, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Bar{}, false, err
	}
	if s.idx >= len(s.bars) {
		return model.Bar{}, false, nil
	}
	bar := s.bars[s.idx]
	s.idx++
	return bar, true, nil
}

// GetData returns a lazy sequence of bars for a historical provider,
// choosing by which interface p implements: a ManyHistoryProvider serves
// all reqs through GetHistoryMany; any other HistoricalProvider is served
// by calling GetHistory once per request, in order.
//
// Live providers are not served: for them, and for any provider that is
// not a HistoricalProvider, GetData returns an error. The live collector
// calls LiveProvider.Connect directly instead, since it needs the session
// to enforce the listen window and cutoff.
func GetData(ctx context.Context, p Provider, reqs []model.Req) (BarSeq, error) {
	switch hp := p.(type) {
	case ManyHistoryProvider:
		return hp.GetHistoryMany(ctx, reqs)
	case HistoricalProvider:
		return historicalLoop(ctx, hp, reqs), nil
	default:
		return nil, fmt.Errorf("providercontract: %s is not a historical provider", p.Name())
	}
}

// historicalLoop is the default get_history_many behavior: loop over the
// single-request method.
func historicalLoop(ctx context.Context, hp HistoricalProvider, reqs []model.Req) BarSeq {
	return &loopSeq{ctx: ctx, hp: hp, reqs: reqs}
}

type loopSeq struct {
	ctx     context.Context
	hp      HistoricalProvider
	reqs    []model.Req
	reqIdx  int
	current BarSeq
}

func (l *loopSeq) Next(ctx context.Context) (model.Bar, bool, error) {
	for {
		if l.current != nil {
			bar, ok, err := l.current.Next(ctx)
			if err != nil {
				return model.Bar{}, false, err
			}
			if ok {
				return bar, true, nil
			}
			l.current = nil
		}
		if l.reqIdx >= len(l.reqs) {
			return model.Bar{}, false, nil
		}
		req := l.reqs[l.reqIdx]
		l.reqIdx++
		seq, err := l.hp.GetHistory(ctx, req)
		if err != nil {
			return model.Bar{}, false, err
		}
		l.current = seq
	}
}
