package ledger

import (
	"blogsmith/internal/store"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fixedPolicy bool

func (p fixedPolicy) PreventDuplicates() bool { return bool(p) }

func TestIsDuplicate_PolicyOff(t *testing.T) {
	kv := store.NewMemoryStore()
	kv.Set(store.KeyUsedTopics, `["겨울철 건강관리 꿀팁 5가지"]`)
	l := New(kv, store.KeyUsedTopics, fixedPolicy(false), Options{})

	if l.IsDuplicate("겨울철 건강관리 꿀팁 5가지") {
		t.Error("IsDuplicate must be false while duplicate prevention is off")
	}
	fresh, dups := l.Filter([]string{"겨울철 건강관리 꿀팁 5가지"})
	if len(fresh) != 1 || len(dups) != 0 {
		t.Errorf("Filter with policy off = (%v, %v)", fresh, dups)
	}
}

func TestIsDuplicate_PolicyOn(t *testing.T) {
	kv := store.NewMemoryStore()
	l := New(kv, store.KeyUsedTopics, fixedPolicy(true), Options{Threshold: 0.7})
	l.Record("겨울철 건강관리 꿀팁 5가지")

	tests := []struct {
		candidate string
		want      bool
	}{
		{"겨울철 건강관리 꿀팁 5가지", true},
		{"겨울철  건강관리 꿀팁 6가지", true},
		{"여름 휴가 국내 여행지 추천", false},
	}
	for _, tt := range tests {
		if got := l.IsDuplicate(tt.candidate); got != tt.want {
			t.Errorf("IsDuplicate(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestIsDuplicate_EmptyLedger(t *testing.T) {
	l := New(store.NewMemoryStore(), store.KeyUsedTopics, fixedPolicy(true), Options{})
	if l.IsDuplicate("anything") {
		t.Error("empty ledger flagged a duplicate")
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	l := New(store.NewMemoryStore(), store.KeyUsedTopics, fixedPolicy(true), Options{})
	l.Record("건강관리 식단 가이드")

	fresh, dups := l.Filter([]string{
		"운동 루틴 만들기",
		"건강관리 식단 가이드",
		"수면 습관 개선법",
	})

	if diff := cmp.Diff([]string{"운동 루틴 만들기", "수면 습관 개선법"}, fresh); diff != "" {
		t.Errorf("fresh mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"건강관리 식단 가이드"}, dups); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_SkipsNormalizedExactDuplicates(t *testing.T) {
	l := New(store.NewMemoryStore(), store.KeyUsedTopics, fixedPolicy(true), Options{})

	l.Record("Health Care Tips")
	l.Record("health care  tips")
	l.Record("HEALTHCARETIPS")
	l.Record("   ")

	if n := l.Len(); n != 1 {
		t.Errorf("expected 1 entry, got %d: %v", n, l.Entries())
	}
}

func TestRecord_CapacityEvictsOldest(t *testing.T) {
	l := New(store.NewMemoryStore(), store.KeyUsedTopics, fixedPolicy(true), Options{Capacity: 1000})

	for i := 0; i < 1000; i++ {
		l.Record(fmt.Sprintf("topic-%04d", i))
	}
	if n := l.Len(); n != 1000 {
		t.Fatalf("expected 1000 entries, got %d", n)
	}

	l.Record("topic-1000")
	entries := l.Entries()
	if len(entries) != 1000 {
		t.Fatalf("ledger exceeded capacity: %d", len(entries))
	}
	if entries[0] != "topic-0001" {
		t.Errorf("oldest entry should be evicted, first is %q", entries[0])
	}
	if entries[len(entries)-1] != "topic-1000" {
		t.Errorf("newest entry should be last, got %q", entries[len(entries)-1])
	}
}

func TestEntries_CorruptDataFailsOpen(t *testing.T) {
	kv := store.NewMemoryStore()
	kv.Set(store.KeyUsedTopics, "{not json")
	l := New(kv, store.KeyUsedTopics, fixedPolicy(true), Options{})

	if got := l.Entries(); len(got) != 0 {
		t.Errorf("expected empty entries on corrupt data, got %v", got)
	}
	if l.IsDuplicate("anything") {
		t.Error("corrupt ledger must not block candidates")
	}

	l.Record("recovered")
	if diff := cmp.Diff([]string{"recovered"}, l.Entries()); diff != "" {
		t.Errorf("record after corruption mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	kv := store.NewMemoryStore()
	l := New(kv, store.KeyUsedTopics, fixedPolicy(true), Options{})
	l.Record("a topic")
	l.Clear()

	if l.Len() != 0 {
		t.Error("Clear should empty the ledger")
	}
	if _, ok := kv.Get(store.KeyUsedTopics); ok {
		t.Error("Clear should remove the backing key")
	}
}

func TestRecord_PolicyOffRecordsNothing(t *testing.T) {
	kv := store.NewMemoryStore()
	p := NewPolicy(kv, true)
	l := New(kv, store.KeyUsedTopics, p, Options{})
	p.Track(l)

	p.SetPreventDuplicates(false)
	l.Record("겨울철 건강관리 꿀팁")
	if got := l.Entries(); len(got) != 0 {
		t.Errorf("expected no entries while prevention is off, got %v", got)
	}

	p.SetPreventDuplicates(true)
	if l.IsDuplicate("겨울철 건강관리 꿀팁") {
		t.Error("topic accepted while prevention was off must not count as a duplicate")
	}

	l.Record("겨울철 건강관리 꿀팁")
	if !l.IsDuplicate("겨울철 건강관리 꿀팁") {
		t.Error("Record should resume once prevention is back on")
	}
}

func TestMatch(t *testing.T) {
	l := New(store.NewMemoryStore(), store.KeyUsedTopics, fixedPolicy(true), Options{})
	l.Record("재테크 기초 가이드")
	l.Record("여름 여행 준비물")

	best, score := l.Match("재테크 기초 가이드 2편")
	if best != "재테크 기초 가이드" || score < 0.7 {
		t.Errorf("Match = (%q, %v)", best, score)
	}
}

func TestPolicy_DefaultAndPersistence(t *testing.T) {
	kv := store.NewMemoryStore()
	p := NewPolicy(kv, true)

	if !p.PreventDuplicates() {
		t.Error("expected fallback value true")
	}

	kv.Set(store.KeyPreventDuplicates, "garbage")
	if !p.PreventDuplicates() {
		t.Error("unparseable value should use fallback")
	}

	p.SetPreventDuplicates(false)
	if p.PreventDuplicates() {
		t.Error("expected stored false")
	}
	if NewPolicy(kv, true).PreventDuplicates() {
		t.Error("a new policy over the same store should read the stored value")
	}
}

func TestPolicy_DisablingClearsLedgers(t *testing.T) {
	kv := store.NewMemoryStore()
	p := NewPolicy(kv, true)
	topics := New(kv, store.KeyUsedTopics, p, Options{})
	keywords := New(kv, store.KeyUsedKeywords, p, Options{})
	p.Track(topics, keywords)

	topics.Record("주제")
	keywords.Record("키워드")

	if cleared := p.SetPreventDuplicates(true); cleared {
		t.Error("prevent -> prevent must not clear")
	}
	if topics.Len() != 1 {
		t.Fatal("ledger cleared unexpectedly")
	}

	if cleared := p.SetPreventDuplicates(false); !cleared {
		t.Error("prevent -> allow should report clearing")
	}
	if topics.Len() != 0 || keywords.Len() != 0 {
		t.Error("ledgers should be empty after allowing duplicates")
	}

	topics.Record("새 주제")
	if cleared := p.SetPreventDuplicates(false); cleared {
		t.Error("allow -> allow must not clear")
	}
	if cleared := p.SetPreventDuplicates(true); cleared {
		t.Error("allow -> prevent must not clear")
	}
	if topics.Len() != 1 {
		t.Error("entries recorded while allowed should survive re-enabling")
	}
}
