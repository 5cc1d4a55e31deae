package keywords

import (
	"blogsmith/internal/core"
	"blogsmith/internal/ledger"
	"blogsmith/internal/store"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeTrends struct {
	responses [][]string
	errs      []error
	calls     int
}

func (f *fakeTrends) TrendingKeywords(ctx context.Context, category string) ([]string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("no more responses")
}

type fakeUsage struct {
	recent   []string
	recorded []core.KeywordUsage
	err      error
}

func (f *fakeUsage) Record(ctx context.Context, usage *core.KeywordUsage) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, *usage)
	return nil
}

func (f *fakeUsage) RecentKeywords(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	return f.recent, f.err
}

type fixedPolicy bool

func (p fixedPolicy) PreventDuplicates() bool { return bool(p) }

func newLedger(prevent bool, entries ...string) *ledger.Ledger {
	l := ledger.New(store.NewMemoryStore(), store.KeyUsedKeywords, fixedPolicy(prevent), ledger.Options{})
	for _, e := range entries {
		l.Record(e)
	}
	return l
}

func noShuffle(s *Selector) *Selector {
	s.shuffle = func([]string) {}
	return s
}

func TestSelect_FirstFreshTrendingKeyword(t *testing.T) {
	trends := &fakeTrends{responses: [][]string{{"건강관리", "겨울 캠핑"}}}
	s := NewSelector(trends, newLedger(true, "건강관리"), nil, Options{})

	sel, err := s.Select(context.Background(), "health")
	if err != nil {
		t.Fatal(err)
	}
	want := Selection{Keyword: "겨울 캠핑", Category: "health", Source: SourceTrending, Attempts: 1}
	if diff := cmp.Diff(want, sel); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_PolicyAllowAcceptsFirst(t *testing.T) {
	trends := &fakeTrends{responses: [][]string{{"건강관리", "겨울 캠핑"}}}
	s := NewSelector(trends, newLedger(false, "건강관리"), nil, Options{})

	sel, _ := s.Select(context.Background(), "")
	if sel.Keyword != "건강관리" {
		t.Errorf("expected first suggestion with duplicates allowed, got %q", sel.Keyword)
	}
}

func TestSelect_RetriesThenCategory(t *testing.T) {
	trends := &fakeTrends{
		errs:      []error{errors.New("503"), nil, errors.New("timeout")},
		responses: [][]string{nil, {"건강관리"}},
	}
	usage := &fakeUsage{recent: []string{"면역력 높이는 음식"}}
	s := noShuffle(NewSelector(trends, newLedger(true, "건강관리"), usage, Options{Attempts: 3, UserID: "u1"}))

	sel, err := s.Select(context.Background(), "건강")
	if err != nil {
		t.Fatal(err)
	}
	if trends.calls != 3 {
		t.Errorf("expected 3 trending attempts, got %d", trends.calls)
	}
	// 건강관리 is in the ledger and 면역력 높이는 음식 was used recently
	if sel.Keyword != "홈트레이닝 루틴" || sel.Source != SourceCategory || sel.Attempts != 3 {
		t.Errorf("unexpected selection %+v", sel)
	}
}

func TestSelect_DefaultWhenEverythingUsed(t *testing.T) {
	c, _ := FindCategory("travel")
	s := NewSelector(nil, newLedger(true, c.Keywords...), nil, Options{DefaultKeyword: "기본 키워드"})

	sel, err := s.Select(context.Background(), "travel")
	if err != nil {
		t.Fatal(err)
	}
	if sel.Keyword != "기본 키워드" || sel.Source != SourceDefault {
		t.Errorf("unexpected selection %+v", sel)
	}
}

func TestSelect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trends := &fakeTrends{responses: [][]string{{"a"}}}
	_, err := NewSelector(trends, nil, nil, Options{}).Select(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if trends.calls != 0 {
		t.Error("no provider call should be made after cancellation")
	}
}

func TestCommit(t *testing.T) {
	l := newLedger(true)
	usage := &fakeUsage{}
	s := NewSelector(nil, l, usage, Options{UserID: "u1"})

	s.Commit(context.Background(), Selection{Keyword: "재테크 기초", Category: "finance"})

	if diff := cmp.Diff([]string{"재테크 기초"}, l.Entries()); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
	if len(usage.recorded) != 1 || usage.recorded[0].Keyword != "재테크 기초" || usage.recorded[0].UserID != "u1" {
		t.Errorf("unexpected usage records %+v", usage.recorded)
	}
}

func TestCommit_BackendFailureIgnored(t *testing.T) {
	l := newLedger(true)
	s := NewSelector(nil, l, &fakeUsage{err: errors.New("db down")}, Options{UserID: "u1"})

	s.Commit(context.Background(), Selection{Keyword: "k"})
	if l.Len() != 1 {
		t.Error("ledger should be updated even when the backend fails")
	}
}

func TestFindCategory(t *testing.T) {
	for _, name := range []string{"health", "HEALTH", "건강"} {
		if c, ok := FindCategory(name); !ok || c.ID != "health" {
			t.Errorf("FindCategory(%q) = %+v, %v", name, c, ok)
		}
	}
	if _, ok := FindCategory("unknown"); ok {
		t.Error("unknown category should not be found")
	}
}
