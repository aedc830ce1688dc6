package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"flashArb/internal/model"
)

var (
	swapTopic = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	poolAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeDecoder struct{}

func (fakeDecoder) Addresses() []common.Address { return []common.Address{poolAddr} }
func (fakeDecoder) Topic0() []common.Hash       { return []common.Hash{swapTopic} }

func (fakeDecoder) Decode(log types.Log) (model.TradeEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != swapTopic {
		return model.TradeEvent{}, errors.New("not a swap")
	}
	return model.TradeEvent{Pool: log.Address, BlockNumber: log.BlockNumber, LogIndex: log.Index}, nil
}

type fakeSub struct {
	errCh chan error
}

func newFakeSub() *fakeSub { return &fakeSub{errCh: make(chan error, 1)} }

func (s *fakeSub) Unsubscribe()      {}
func (s *fakeSub) Err() <-chan error { return s.errCh }

type fakeSource struct {
	mu        sync.Mutex
	streaming bool
	latest    []uint64
	logs      map[uint64][]types.Log
	ranges    []BlockRange
	subs      []*fakeSub
	sinks     chan chan<- types.Log
	subErr    error
	failNext  int
	subCalls  int
}

func (f *fakeSource) SupportsSubscriptions() bool { return f.streaming }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.latest[0]
	if len(f.latest) > 1 {
		f.latest = f.latest[1:]
	}
	return head, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, BlockRange{From: from, To: to})
	var out []types.Log
	for b := from; b <= to; b++ {
		out = append(out, f.logs[b]...)
	}
	return out, nil
}

func (f *fakeSource) SubscribeLogs(_ context.Context, _ []common.Address, _ []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.subCalls++
	if f.subErr != nil {
		f.mu.Unlock()
		return nil, f.subErr
	}
	if f.failNext > 0 {
		f.failNext--
		f.mu.Unlock()
		return nil, errors.New("dial tcp: connection refused")
	}
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	f.sinks <- ch
	return sub, nil
}

func swapLog(block uint64, index uint) types.Log {
	return types.Log{Address: poolAddr, Topics: []common.Hash{swapTopic}, BlockNumber: block, Index: index}
}

func receive(t *testing.T, events <-chan model.TradeEvent) model.TradeEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return model.TradeEvent{}
}

func TestFeedPollsNewBlocks(t *testing.T) {
	source := &fakeSource{
		latest: []uint64{100, 100, 103},
		logs: map[uint64][]types.Log{
			100: {swapLog(100, 0)},
			101: {swapLog(101, 0), {Address: poolAddr}},
			103: {swapLog(103, 2), {Address: poolAddr, Topics: []common.Hash{swapTopic}, BlockNumber: 103, Removed: true}},
		},
	}
	feed := NewFeed(source, fakeDecoder{}, Config{PollInterval: time.Millisecond, BatchSize: 2, RetryBackoff: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan model.TradeEvent)
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, events) }()

	first := receive(t, events)
	second := receive(t, events)
	if first.BlockNumber != 101 || second.BlockNumber != 103 || second.LogIndex != 2 {
		t.Fatalf("unexpected events: %+v %+v", first, second)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.ranges) < 2 || source.ranges[0] != (BlockRange{From: 101, To: 102}) || source.ranges[1] != (BlockRange{From: 103, To: 103}) {
		t.Fatalf("unexpected ranges: %+v", source.ranges)
	}
}

func TestFeedSubscribesAndResubscribes(t *testing.T) {
	source := &fakeSource{streaming: true, sinks: make(chan chan<- types.Log, 2)}
	feed := NewFeed(source, fakeDecoder{}, Config{RetryBackoff: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan model.TradeEvent)
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, events) }()

	sink := <-source.sinks
	sink <- swapLog(7, 1)
	if ev := receive(t, events); ev.BlockNumber != 7 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	source.mu.Lock()
	source.subs[0].errCh <- errors.New("websocket closed")
	source.mu.Unlock()

	sink = <-source.sinks
	sink <- swapLog(8, 0)
	if ev := receive(t, events); ev.BlockNumber != 8 {
		t.Fatalf("unexpected event after resubscribe: %+v", ev)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestFeedSubscribeFailure(t *testing.T) {
	source := &fakeSource{streaming: true, subErr: errors.New("method not found")}
	feed := NewFeed(source, fakeDecoder{}, Config{MaxRetries: 1, RetryBackoff: time.Millisecond}, nil)
	if err := feed.Run(context.Background(), make(chan model.TradeEvent)); err == nil {
		t.Fatalf("expected subscribe error")
	}
}

func TestFeedSurvivesOutageAfterSubscribing(t *testing.T) {
	source := &fakeSource{streaming: true, sinks: make(chan chan<- types.Log, 2)}
	feed := NewFeed(source, fakeDecoder{}, Config{MaxRetries: 5, RetryBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan model.TradeEvent)
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, events) }()

	<-source.sinks
	source.mu.Lock()
	source.failNext = 20
	source.subs[0].errCh <- errors.New("websocket closed")
	source.mu.Unlock()

	var sink chan<- types.Log
	select {
	case sink = <-source.sinks:
	case err := <-done:
		t.Fatalf("feed stopped during outage: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for resubscribe")
	}
	sink <- swapLog(9, 0)
	if ev := receive(t, events); ev.BlockNumber != 9 {
		t.Fatalf("unexpected event after outage: %+v", ev)
	}

	source.mu.Lock()
	calls := source.subCalls
	source.mu.Unlock()
	if calls != 22 {
		t.Fatalf("expected 22 subscribe calls, got %d", calls)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestFeedBacksOffWhenSubscriptionFlaps(t *testing.T) {
	source := &fakeSource{streaming: true, sinks: make(chan chan<- types.Log, 8)}
	feed := NewFeed(source, fakeDecoder{}, Config{RetryBackoff: 20 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, make(chan model.TradeEvent)) }()

	<-source.sinks
	start := time.Now()
	source.mu.Lock()
	source.subs[0].errCh <- errors.New("websocket closed")
	source.mu.Unlock()
	<-source.sinks
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Fatalf("resubscribed after %s, want a backoff", waited)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
