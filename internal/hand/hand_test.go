package hand

import (
	"errors"
	"strings"
	"testing"

	"github.com/mkchan/bigtwo/internal/card"
)

func parse(t *testing.T, s string) []card.Card {
	t.Helper()
	cards, err := card.ParseCards(strings.Fields(s))
	if err != nil {
		t.Fatalf("bad test cards %q: %v", s, err)
	}
	return cards
}

func classify(t *testing.T, s string) Hand {
	t.Helper()
	h, err := Classify(parse(t, s))
	if err != nil {
		t.Fatalf("Classify(%q) failed: %v", s, err)
	}
	return h
}

func TestClassifyKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cards string
		want  Kind
	}{
		{"7h", Single},
		{"Kd Kh", Pair},
		{"4c 4h 4s", Triple},
		{"3d 4c 5h 6s 7d", Straight},
		{"3h 7h 9h Jh Kh", Flush},
		{"9d 9c 9h 4c 4s", FullHouse},
		{"Qd Qc Qh Qs 3c", FourPlusOne},
		{"5s 6s 7s 8s 9s", StraightFlush},
	}

	for _, tc := range tests {
		h, err := Classify(parse(t, tc.cards))
		if err != nil {
			t.Errorf("Classify(%q) failed: %v", tc.cards, err)
			continue
		}
		if h.Kind != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.cards, h.Kind, tc.want)
		}
	}
}

func TestClassifyRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cards string
		want  error
	}{
		{"four cards", "3d 4c 5h 6s", ErrCardCount},
		{"six cards", "3d 4c 5h 6s 7d 8c", ErrCardCount},
		{"mismatched pair", "Kd Qh", ErrNoKind},
		{"mismatched triple", "4c 4h 5s", ErrNoKind},
		{"five loose cards", "3d 5c 8h Js 2d", ErrNoKind},
		{"two pair is not playable", "9d 9c Kh Ks 3d", ErrNoKind},
	}

	for _, testCase := range tests {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Classify(parse(t, tc.cards))
			if !errors.Is(err, tc.want) {
				t.Errorf("Classify(%q) error = %v, want %v", tc.cards, err, tc.want)
			}
		})
	}
}

func TestClassifyRejectsEmpty(t *testing.T) {
	t.Parallel()
	if _, err := Classify(nil); !errors.Is(err, ErrCardCount) {
		t.Errorf("Classify(nil) error = %v, want %v", err, ErrCardCount)
	}
}

func TestClassifyRejectsDuplicates(t *testing.T) {
	t.Parallel()
	cards := []card.Card{card.New(card.King, card.Hearts), card.New(card.King, card.Hearts)}
	if _, err := Classify(cards); !errors.Is(err, ErrNoKind) {
		t.Errorf("expected ErrNoKind for duplicate cards, got %v", err)
	}
}

func TestStraightBoundaries(t *testing.T) {
	t.Parallel()
	// Ten through ace is the highest plain-rank straight.
	if h := classify(t, "Td Jc Qh Ks Ad"); h.Kind != Straight {
		t.Errorf("TJQKA should be a straight, got %v", h.Kind)
	}

	// Jack through two wraps past the ace and outranks everything.
	if h := classify(t, "Jd Qc Kh As 2d"); h.Kind != Straight {
		t.Errorf("JQKA2 should be a straight, got %v", h.Kind)
	}

	// Ace-low and two-low runs are not straights here.
	if _, err := Classify(parse(t, "Ad 2c 3h 4s 5d")); !errors.Is(err, ErrNoKind) {
		t.Errorf("A2345 should not classify, got %v", err)
	}
	if _, err := Classify(parse(t, "2d 3c 4h 5s 6d")); !errors.Is(err, ErrNoKind) {
		t.Errorf("23456 should not classify, got %v", err)
	}
}

func TestStraightFlushBeatsDisguise(t *testing.T) {
	t.Parallel()
	// A flush that is also a straight must classify as a straight flush.
	h := classify(t, "3h 4h 5h 6h 7h")
	if h.Kind != StraightFlush {
		t.Errorf("expected StraightFlush, got %v", h.Kind)
	}
}

func TestBeatsSameKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		a, b  string
		beats bool
	}{
		{"higher single rank", "8d", "7s", true},
		{"suit breaks single tie", "7s", "7h", true},
		{"lower single", "7d", "7c", false},
		{"two beats ace", "2d", "As", true},
		{"pair by higher card", "9c 9s", "9d 9h", true},
		{"pair of twos on top", "2d 2c", "Ah As", true},
		{"triple by rank", "5d 5c 5h", "4c 4h 4s", true},
		{"straight by top card", "4c 5h 6s 7d 8d", "3d 4d 5c 6h 7s", true},
		{"straight suit tiebreak", "3c 4d 5d 6d 7s", "3d 4c 5h 6s 7h", true},
		{"jack-high wrap is top straight", "Jd Qc Kh As 2d", "Td Jh Qs Kc Ad", true},
		{"flush by top card", "4s 8s Ts Js 2s", "3h 9h Jh Kh Ah", true},
		{"full house by triple", "Td Tc Th 3c 3d", "9d 9c 9h Ac As", true},
		{"quads by rank", "8d 8c 8h 8s 3d", "7d 7c 7h 7s Ad", true},
	}

	for _, testCase := range tests {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := classify(t, tc.a)
			b := classify(t, tc.b)
			if got := Beats(a, b); got != tc.beats {
				t.Errorf("Beats(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.beats)
			}
			// A hand never beats a strictly stronger or equal hand both ways.
			if tc.beats && Beats(b, a) {
				t.Errorf("Beats(%q, %q) and its inverse both true", tc.b, tc.a)
			}
		})
	}
}

func TestBeatsAcrossCategories(t *testing.T) {
	t.Parallel()
	straight := classify(t, "3d 4c 5h 6s 7d")
	flush := classify(t, "3h 5h 7h 9h Jh")
	fullHouse := classify(t, "4d 4c 4h 9c 9s")
	quads := classify(t, "6d 6c 6h 6s 3c")
	straightFlush := classify(t, "3s 4s 5s 6s 7s")

	ladder := []Hand{straight, flush, fullHouse, quads, straightFlush}
	for i := 1; i < len(ladder); i++ {
		if !Beats(ladder[i], ladder[i-1]) {
			t.Errorf("%v should beat %v", ladder[i].Kind, ladder[i-1].Kind)
		}
		if Beats(ladder[i-1], ladder[i]) {
			t.Errorf("%v should not beat %v", ladder[i-1].Kind, ladder[i].Kind)
		}
	}

	// Any straight flush tops any four plus one, even aces.
	aceQuads := classify(t, "Ad Ac Ah As 3d")
	if !Beats(straightFlush, aceQuads) {
		t.Error("straight flush should beat ace quads")
	}
}

func TestHandString(t *testing.T) {
	t.Parallel()
	h := classify(t, "Ks Kh")
	if got := h.String(); got != "Pair (Kh Ks)" {
		t.Errorf("String() = %q", got)
	}
}
