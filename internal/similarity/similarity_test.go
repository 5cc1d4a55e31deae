package similarity

import (
	"math"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  Hello World  ", "helloworld"},
		{"건강 관리\t팁\n", "건강관리팁"},
		{"ABC def", "abcdef"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRatio_Identity(t *testing.T) {
	inputs := []string{"", "a", "건강관리 꿀팁 5가지", "The Quick Brown Fox", "  spaced  out  "}
	for _, s := range inputs {
		if r := Ratio(s, s); r != 1 {
			t.Errorf("Ratio(%q, %q) = %v, want 1", s, s, r)
		}
	}
}

func TestRatio_BothEmptyAfterNormalization(t *testing.T) {
	if r := Ratio("   ", "\t\n"); r != 1 {
		t.Errorf("expected whitespace-only strings to be fully similar, got %v", r)
	}
}

func TestRatio_OneEmpty(t *testing.T) {
	if r := Ratio("", "abc"); r != 0 {
		t.Errorf("expected 0 against empty string, got %v", r)
	}
}

func TestRatio_DisjointIsZero(t *testing.T) {
	for n := 1; n <= 20; n += 5 {
		a := strings.Repeat("a", n)
		b := strings.Repeat("b", n)
		if r := Ratio(a, b); r != 0 {
			t.Errorf("Ratio(%q, %q) = %v, want 0", a, b, r)
		}
	}
}

func TestRatio_CaseAndWhitespaceInsensitive(t *testing.T) {
	if r := Ratio("Health Care Tips", "healthcaretips"); r != 1 {
		t.Errorf("expected normalized equality, got %v", r)
	}
}

func TestRatio_CountsRunesNotBytes(t *testing.T) {
	// one substitution out of four Hangul syllables
	got := Ratio("건강관리", "건강관련")
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Ratio = %v, want 0.75", got)
	}
}

func TestRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"건강관리 방법", "건강 관리의 모든 것"},
		{"", "abc"},
	}
	for _, p := range pairs {
		if Ratio(p[0], p[1]) != Ratio(p[1], p[0]) {
			t.Errorf("Ratio not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestRatio_Known(t *testing.T) {
	// kitten -> sitting: distance 3, max len 7
	got := Ratio("kitten", "sitting")
	want := 4.0 / 7.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Ratio(kitten, sitting) = %v, want %v", got, want)
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		a, b      string
		threshold float64
		want      bool
	}{
		{"건강관리 꿀팁 5가지", "건강관리 꿀팁 5가지!", DefaultThreshold, true},
		{"겨울철 건강관리 방법", "여름 휴가 여행지 추천", DefaultThreshold, false},
		{"abcdefghij", "abcdefgxyz", DefaultThreshold, true},  // 0.70 exactly
		{"abcdefghij", "abcdefwxyz", DefaultThreshold, false}, // 0.60
	}

	for _, tt := range tests {
		if got := IsDuplicate(tt.a, tt.b, tt.threshold); got != tt.want {
			t.Errorf("IsDuplicate(%q, %q) = %v (ratio %v), want %v",
				tt.a, tt.b, got, Ratio(tt.a, tt.b), tt.want)
		}
	}
}

func TestContainsAndEqual(t *testing.T) {
	if !Contains("겨울철 건강 관리 꿀팁", "건강관리") {
		t.Error("Contains should ignore whitespace")
	}
	if Contains("여행 추천", "건강") {
		t.Error("Contains matched unrelated text")
	}
	if !Equal("Hello World", "helloworld") {
		t.Error("Equal should ignore case and whitespace")
	}
}

func TestBest(t *testing.T) {
	entries := []string{"여름 여행지 추천", "겨울철 건강관리 방법", "재테크 기초"}
	best, score := Best("겨울 건강관리 방법", entries)
	if best != "겨울철 건강관리 방법" {
		t.Errorf("Best picked %q", best)
	}
	if score < DefaultThreshold {
		t.Errorf("expected a duplicate-level score, got %v", score)
	}

	if b, s := Best("x", nil); b != "" || s != 0 {
		t.Errorf("Best on empty entries = (%q, %v)", b, s)
	}
}
