// Package hand classifies played card sets into comparable hands.
//
// Legal plays are 1, 2, 3 or 5 cards. Five-card hands are ranked by
// category (straight < flush < full house < four plus one < straight
// flush) and within a category by a single key card or rank.
package hand

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkchan/bigtwo/internal/card"
)

// Kind enumerates the playable hand shapes, ordered so that a higher
// five-card Kind beats any lower one.
type Kind int

const (
	Single Kind = iota
	Pair
	Triple
	Straight
	Flush
	FullHouse
	FourPlusOne
	StraightFlush
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Single:
		return "Single"
	case Pair:
		return "Pair"
	case Triple:
		return "Triple"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourPlusOne:
		return "Four Plus One"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// IsFiveCard reports whether the kind is a five-card category.
func (k Kind) IsFiveCard() bool {
	return k >= Straight
}

var (
	// ErrCardCount rejects plays that are not 1, 2, 3 or 5 cards.
	ErrCardCount = errors.New("a play must be 1, 2, 3 or 5 cards")
	// ErrNoKind rejects card sets that form no playable hand.
	ErrNoKind = errors.New("cards do not form a playable hand")
)

// Hand is a classified play. Cards are held sorted ascending.
type Hand struct {
	Kind  Kind
	Cards []card.Card
	key   int
}

// Classify determines the kind of a card set and its comparison key.
func Classify(cards []card.Card) (Hand, error) {
	seen := make(map[card.Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return Hand{}, fmt.Errorf("%w: duplicate card %s", ErrNoKind, c)
		}
		seen[c] = true
	}

	sorted := card.Sorted(cards)
	switch len(sorted) {
	case 1:
		return Hand{Kind: Single, Cards: sorted, key: sorted[0].Order()}, nil
	case 2:
		if sorted[0].Rank != sorted[1].Rank {
			return Hand{}, fmt.Errorf("%w: a pair needs matching ranks", ErrNoKind)
		}
		return Hand{Kind: Pair, Cards: sorted, key: sorted[1].Order()}, nil
	case 3:
		if sorted[0].Rank != sorted[1].Rank || sorted[1].Rank != sorted[2].Rank {
			return Hand{}, fmt.Errorf("%w: a triple needs matching ranks", ErrNoKind)
		}
		return Hand{Kind: Triple, Cards: sorted, key: int(sorted[0].Rank)}, nil
	case 5:
		return classifyFive(sorted)
	default:
		return Hand{}, ErrCardCount
	}
}

func classifyFive(sorted []card.Card) (Hand, error) {
	flush := true
	for _, c := range sorted[1:] {
		if c.Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	straight := true
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Rank != sorted[i-1].Rank+1 {
			straight = false
			break
		}
	}

	top := sorted[len(sorted)-1]

	switch {
	case straight && flush:
		return Hand{Kind: StraightFlush, Cards: sorted, key: top.Order()}, nil
	case straight:
		return Hand{Kind: Straight, Cards: sorted, key: top.Order()}, nil
	}

	counts := make(map[card.Rank]int, 2)
	for _, c := range sorted {
		counts[c.Rank]++
	}

	if len(counts) == 2 {
		for rank, n := range counts {
			switch n {
			case 4:
				return Hand{Kind: FourPlusOne, Cards: sorted, key: int(rank)}, nil
			case 3:
				return Hand{Kind: FullHouse, Cards: sorted, key: int(rank)}, nil
			}
		}
	}

	if flush {
		return Hand{Kind: Flush, Cards: sorted, key: top.Order()}, nil
	}

	return Hand{}, fmt.Errorf("%w: five cards must form a straight, flush, full house or better", ErrNoKind)
}

// Size returns the number of cards in the hand.
func (h Hand) Size() int {
	return len(h.Cards)
}

// String describes the hand, e.g. "Pair (Kh Ks)".
func (h Hand) String() string {
	return fmt.Sprintf("%s (%s)", h.Kind, strings.Join(card.Strings(h.Cards), " "))
}

// Beats reports whether a beats b. Both hands must hold the same
// number of cards; the rules engine enforces that before comparing.
func Beats(a, b Hand) bool {
	if a.Kind != b.Kind {
		return a.Kind > b.Kind
	}
	return a.key > b.key
}
