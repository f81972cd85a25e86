package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWrite(t *testing.T) {
	m := New(false)

	m.ObserveWrite("money", "money.csv", nil)
	m.ObserveWrite("money", "money.csv", nil)
	m.ObserveWrite("money", "money.csv", errors.New("disk full"))

	if got := testutil.ToFloat64(m.RecordsWritten.WithLabelValues("money", "money.csv")); got != 2 {
		t.Errorf("written = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsFailed.WithLabelValues("money", "money.csv")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestObserveCommit(t *testing.T) {
	m := New(false)

	m.ObserveCommit(2)
	m.ObserveCommit(3)

	if got := testutil.ToFloat64(m.Commits); got != 2 {
		t.Errorf("commits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ActiveChannels); got != 3 {
		t.Errorf("active channels = %v, want 3", got)
	}
}

func TestHandler(t *testing.T) {
	m := New(true)
	m.MoneyTransactions.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"townylog_money_transactions_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(false), New(false)
	a.Commits.Inc()

	if got := testutil.ToFloat64(b.Commits); got != 0 {
		t.Errorf("second instance commits = %v, want 0", got)
	}
}
