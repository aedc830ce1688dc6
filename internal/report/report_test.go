package report

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"flashArb/internal/model"
	"flashArb/internal/storage"
)

type memorySink struct {
	reports []model.CycleReport
	err     error
}

func (m *memorySink) PutCycleReport(_ context.Context, report model.CycleReport) error {
	m.reports = append(m.reports, report)
	return m.err
}

var dai = model.Token{Symbol: "DAI", Decimals: 18}

func TestRenderBalances(t *testing.T) {
	var buf bytes.Buffer
	RenderBalances(&buf, model.ExecutionResult{
		Before: model.Balances{Native: big.NewInt(2e18), Token: big.NewInt(0)},
		After:  model.Balances{Native: big.NewInt(19e17), Token: big.NewInt(5e17)},
	}, dai, "")

	out := buf.String()
	for _, want := range []string{"ETH before", "ETH spent (gas)", "0.1", "DAI gained/lost", "0.5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBalancesMissingSnapshot(t *testing.T) {
	var buf bytes.Buffer
	RenderBalances(&buf, model.ExecutionResult{}, dai, "BNB")
	if !strings.Contains(buf.String(), "BNB after") || !strings.Contains(buf.String(), "-") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}
}

func TestReporterFansOut(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	failing := &memorySink{err: errors.New("disk full")}
	ok := &memorySink{}
	var buf bytes.Buffer
	reporter := New(Options{Sinks: []storage.Sink{failing, ok}, Out: &buf, Token: dai, Logger: zap.New(core)})

	reporter.Report(context.Background(), model.CycleReport{
		ID:      "c1",
		Outcome: model.OutcomeReverted,
		Execution: &model.ExecutionResult{
			Before: model.Balances{Native: big.NewInt(10), Token: big.NewInt(1)},
			After:  model.Balances{Native: big.NewInt(9), Token: big.NewInt(1)},
		},
	})

	if len(failing.reports) != 1 || len(ok.reports) != 1 {
		t.Fatalf("every sink should receive the report")
	}
	if buf.Len() == 0 {
		t.Fatalf("balance table not rendered")
	}
	if logs.FilterMessage("store cycle report failed").Len() != 1 {
		t.Fatalf("sink failure should be logged")
	}
	if logs.FilterMessage("cycle finished").FilterField(zap.String("outcome", "reverted")).Len() != 1 {
		t.Fatalf("reverted cycle should be logged")
	}
}

func TestReporterSkipsTableWithoutExecution(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Out: &buf}).Report(context.Background(), model.CycleReport{ID: "c2", Outcome: model.OutcomeNoOpportunity})
	if buf.Len() != 0 {
		t.Fatalf("no table expected without execution")
	}
}
