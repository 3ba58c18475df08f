package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/attempt"
	"solana-sniper/internal/blockhash"
	"solana-sniper/internal/chain"
	chainstub "solana-sniper/internal/chain/stub"
	clockstub "solana-sniper/internal/clock/stub"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/gate"
)

type harness struct {
	rpc   *chainstub.RPCClient
	clock *clockstub.Clock
	gate  *gate.Gate
	payer attempt.Signer
	cfg   Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	return &harness{
		rpc:   chainstub.NewRPCClient(),
		clock: clockstub.NewClock(),
		gate:  gate.New(nil),
		payer: attempt.NewKeypairSigner(key),
		cfg:   DefaultConfig(),
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (h *harness) provider() *blockhash.Provider {
	// Separate clock so fan-out pacing is observed on its own.
	return blockhash.NewProvider(h.rpc, blockhash.WithClock(clockstub.NewClock()), blockhash.WithLogger(quietLogger()))
}

func (h *harness) sequential() *Sequential {
	return NewSequential(h.rpc, h.provider(), h.cfg, WithClock(h.clock), WithLogger(quietLogger()))
}

func (h *harness) concurrent() *Concurrent {
	return NewConcurrent(h.rpc, h.provider(), h.cfg, WithClock(h.clock), WithLogger(quietLogger()))
}

func (h *harness) request(trigger string, n int) Request {
	h.gate.Open(trigger)
	return Request{
		TriggerID: trigger,
		Leg:       domain.LegBuy,
		Variants:  domain.GenerateFeeVariants(n, 10000),
		Payer:     h.payer,
		Gate:      h.gate,
	}
}

func rejected() error { return &chain.RPCError{Code: -32002, Message: "Transaction simulation failed"} }

func rateLimited() error { return fmt.Errorf("sendTransaction: %w", chain.ErrRateLimited) }

func transient() error { return errors.New("connection reset by peer") }

func countKind(results []domain.AttemptResult, kind domain.AttemptKind) int {
	n := 0
	for _, r := range results {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func assertSleeps(t *testing.T, got []time.Duration, want ...time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestSequential_FirstAcceptedWins(t *testing.T) {
	h := newHarness(t)
	out := h.sequential().Run(context.Background(), h.request("t1", 5))

	if !out.Won() || out.Winner.Index != 0 {
		t.Fatalf("expected variant 0 to win, got %+v", out.Winner)
	}
	if out.Successes != 1 || out.Attempts != 1 {
		t.Errorf("expected 1 success in 1 attempt, got %d/%d", out.Successes, out.Attempts)
	}
	if h.rpc.SendCalls() != 1 {
		t.Errorf("expected 1 send, got %d", h.rpc.SendCalls())
	}
	if len(out.Results) != 5 || countKind(out.Results, domain.AttemptSkipped) != 4 {
		t.Errorf("expected 4 skipped results, got %+v", out.Results)
	}
	first := out.Results[0]
	if hashes := h.rpc.Hashes(); len(hashes) != 1 || first.Blockhash != hashes[0] {
		t.Errorf("expected attempt to carry blockhash %v, got %q", hashes, first.Blockhash)
	}
	if first.LastValidBlockHeight != 1000 || first.BlockhashAge != 0 {
		t.Errorf("unexpected blockhash metadata %+v", first)
	}
	if out.Results[1].Blockhash != "" {
		t.Error("skipped variants have no blockhash")
	}

	st := h.gate.Status()
	if st.Phase != gate.PhaseClosed || st.Signature != out.Signature {
		t.Errorf("gate not closed with winner: %+v", st)
	}
}

func TestSequential_PacingAndRejectionContainment(t *testing.T) {
	h := newHarness(t)
	h.cfg.BaseDelay = time.Second
	h.rpc.SendErrs = []error{rejected(), rateLimited(), transient()}

	out := h.sequential().Run(context.Background(), h.request("t1", 5))

	if !out.Won() || out.Winner.Index != 3 {
		t.Fatalf("expected variant 3 to win, got %+v", out.Winner)
	}
	wantKinds := []domain.AttemptKind{
		domain.AttemptRejected,
		domain.AttemptRateLimited,
		domain.AttemptTransient,
		domain.AttemptAccepted,
		domain.AttemptSkipped,
	}
	for i, k := range wantKinds {
		if out.Results[i].Kind != k {
			t.Errorf("result %d: expected %s, got %s", i, k, out.Results[i].Kind)
		}
	}

	// rejected -> base, rate limited at index 1 -> base*2, transient -> base
	assertSleeps(t, h.clock.Sleeps(), time.Second, 2*time.Second, time.Second)
}

func TestSequential_ExhaustedContinuesWithoutDelay(t *testing.T) {
	h := newHarness(t)
	h.cfg.BlockhashRetries = 2
	boom := errors.New("blockhash unavailable")
	h.rpc.BlockhashErrs = []error{boom, boom}

	out := h.sequential().Run(context.Background(), h.request("t1", 3))

	if out.Results[0].Kind != domain.AttemptExhausted {
		t.Fatalf("expected first variant exhausted, got %s", out.Results[0].Kind)
	}
	if !errors.Is(out.Results[0].Err, blockhash.ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", out.Results[0].Err)
	}
	if !out.Won() || out.Winner.Index != 1 {
		t.Fatalf("expected variant 1 to win, got %+v", out.Winner)
	}
	if len(h.clock.Sleeps()) != 0 {
		t.Errorf("expected no pacing delay, got %v", h.clock.Sleeps())
	}
}

func TestSequential_NoDelayAfterLastVariant(t *testing.T) {
	h := newHarness(t)
	h.cfg.BaseDelay = 500 * time.Millisecond
	h.rpc.SendErrs = []error{rejected(), rejected(), rejected()}

	out := h.sequential().Run(context.Background(), h.request("t1", 3))

	if out.Won() {
		t.Error("expected no winner")
	}
	if out.Attempts != 3 || out.Successes != 0 {
		t.Errorf("expected 3 attempts, 0 successes, got %d/%d", out.Attempts, out.Successes)
	}
	assertSleeps(t, h.clock.Sleeps(), 500*time.Millisecond, 500*time.Millisecond)

	if h.gate.Status().Phase != gate.PhaseInFlight {
		t.Errorf("gate should stay in flight without a winner, got %s", h.gate.Status().Phase)
	}
}

func TestSequential_BlockedByOtherTrigger(t *testing.T) {
	h := newHarness(t)
	h.gate.Open("other")
	req := h.request("t1", 3)

	out := h.sequential().Run(context.Background(), req)

	if out.Won() || out.Attempts != 0 {
		t.Errorf("expected nothing submitted, got %+v", out)
	}
	if h.rpc.SendCalls() != 0 || h.rpc.BlockhashCalls() != 0 {
		t.Errorf("expected no RPC traffic, got %d sends %d fetches", h.rpc.SendCalls(), h.rpc.BlockhashCalls())
	}
	if countKind(out.Results, domain.AttemptSkipped) != 3 {
		t.Errorf("expected 3 skipped, got %+v", out.Results)
	}
}

func TestFanout_EmptyVariantsIsNoOp(t *testing.T) {
	for _, name := range []string{StrategySequential, StrategyConcurrent} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			s, err := New(name, h.rpc, h.provider(), h.cfg, WithClock(h.clock), WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			out := s.Run(context.Background(), h.request("t1", 0))
			if out.Successes != 0 || out.Attempts != 0 || out.Won() {
				t.Errorf("expected empty outcome, got %+v", out)
			}
			if h.rpc.SendCalls() != 0 {
				t.Errorf("expected no sends, got %d", h.rpc.SendCalls())
			}
		})
	}
}

func TestConcurrent_AtMostOneWinner(t *testing.T) {
	const n = 5
	h := newHarness(t)

	// Hold every send until all variants are in flight so all of them succeed.
	var barrier sync.WaitGroup
	barrier.Add(n)
	h.rpc.SendFunc = func(i int, _ string) (string, error) {
		barrier.Done()
		barrier.Wait()
		return fmt.Sprintf("sig-%d", i), nil
	}

	out := h.concurrent().Run(context.Background(), h.request("t1", n))

	if !out.Won() {
		t.Fatal("expected a winner")
	}
	if out.Successes != n {
		t.Errorf("expected %d successes, got %d", n, out.Successes)
	}
	if countKind(out.Results, domain.AttemptAccepted) != n {
		t.Errorf("expected %d accepted results, got %+v", n, out.Results)
	}

	st := h.gate.Status()
	if st.Phase != gate.PhaseClosed || st.Signature != out.Signature {
		t.Errorf("gate should hold the single winner, got %+v", st)
	}

	// Every attempt used its own blockhash.
	hashes := h.rpc.Hashes()
	if len(hashes) != n {
		t.Fatalf("expected %d blockhash fetches, got %d", n, len(hashes))
	}
	seen := make(map[string]bool)
	for _, hash := range hashes {
		if seen[hash] {
			t.Errorf("blockhash %s reused", hash)
		}
		seen[hash] = true
	}
}

func TestConcurrent_RejectionContainment(t *testing.T) {
	h := newHarness(t)
	h.rpc.SendFunc = func(i int, _ string) (string, error) {
		if i == 0 {
			return "", rejected()
		}
		return fmt.Sprintf("sig-%d", i), nil
	}

	out := h.concurrent().Run(context.Background(), h.request("t1", 4))

	if !out.Won() {
		t.Fatal("a rejected variant must not stop the others")
	}
	if countKind(out.Results, domain.AttemptRejected) != 1 {
		t.Errorf("expected 1 rejected result, got %+v", out.Results)
	}
	if out.Successes < 1 {
		t.Errorf("expected at least 1 success, got %d", out.Successes)
	}
	if out.Attempts+countKind(out.Results, domain.AttemptSkipped) != 4 {
		t.Errorf("attempts %d and skipped results do not cover all variants", out.Attempts)
	}
}

func TestConcurrent_SpacingBetweenLaunches(t *testing.T) {
	h := newHarness(t)
	h.cfg.Spacing = 100 * time.Millisecond
	h.rpc.SendFunc = func(int, string) (string, error) { return "", transient() }

	out := h.concurrent().Run(context.Background(), h.request("t1", 4))

	if out.Won() || out.Attempts != 4 {
		t.Errorf("expected 4 failed attempts, got %+v", out)
	}
	if countKind(out.Results, domain.AttemptTransient) != 4 {
		t.Errorf("expected 4 transient results, got %+v", out.Results)
	}
	assertSleeps(t, h.clock.Sleeps(), 100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
}

func TestConcurrent_StopsLaunchingWhenGateBlocks(t *testing.T) {
	h := newHarness(t)
	h.gate.Open("other")

	out := h.concurrent().Run(context.Background(), h.request("t1", 3))

	if out.Attempts != 0 || h.rpc.SendCalls() != 0 {
		t.Errorf("expected no launches, got %d attempts %d sends", out.Attempts, h.rpc.SendCalls())
	}
	if countKind(out.Results, domain.AttemptSkipped) != 3 {
		t.Errorf("expected 3 skipped, got %+v", out.Results)
	}
}

func TestConcurrent_SharedSemaphoreBoundsInFlight(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxInFlight = 2

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	h.rpc.SendFunc = func(int, string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "", transient()
	}

	c := h.concurrent()
	out := c.Run(context.Background(), h.request("t1", 6))

	if out.Attempts != 6 {
		t.Errorf("expected 6 attempts, got %d", out.Attempts)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 in flight, saw %d", peak)
	}
}

func TestConcurrent_RechecksGateAfterWaitingForSlot(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxInFlight = 1
	c := h.concurrent()

	// Hold the only slot so the launch loop parks in Acquire.
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	req := h.request("t1", 2)

	done := make(chan domain.TradeOutcome, 1)
	go func() { done <- c.Run(context.Background(), req) }()

	time.Sleep(20 * time.Millisecond)
	if !h.gate.Claim("t1", "sig-elsewhere") {
		t.Fatal("expected claim to succeed")
	}
	c.sem.Release(1)

	var out domain.TradeOutcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if out.Attempts != 0 || h.rpc.SendCalls() != 0 {
		t.Errorf("expected no launch after the gate closed, got %d attempts %d sends", out.Attempts, h.rpc.SendCalls())
	}
	if countKind(out.Results, domain.AttemptSkipped) != 2 {
		t.Errorf("expected 2 skipped, got %+v", out.Results)
	}
	if !c.sem.TryAcquire(1) {
		t.Error("slot must be released when the loop stops")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.AttemptKind
	}{
		{"rate limited sentinel", rateLimited(), domain.AttemptRateLimited},
		{"rpc 429 code", &chain.RPCError{Code: 429}, domain.AttemptRateLimited},
		{"rpc -32429 code", &chain.RPCError{Code: -32429}, domain.AttemptRateLimited},
		{"rpc rejection", rejected(), domain.AttemptRejected},
		{"wrapped rpc rejection", fmt.Errorf("send: %w", rejected()), domain.AttemptRejected},
		{"http status", &chain.HTTPStatusError{StatusCode: 502}, domain.AttemptTransient},
		{"transport", transient(), domain.AttemptTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	h := newHarness(t)
	if _, err := New("hybrid", h.rpc, h.provider(), h.cfg); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
