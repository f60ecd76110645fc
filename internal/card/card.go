package card

import (
	"fmt"
	"sort"
	"strings"
)

// Suit represents a card suit, ordered weakest to strongest.
type Suit int

const (
	Diamonds Suit = iota
	Clubs
	Hearts
	Spades
)

// String returns the wire form of a suit ("d", "c", "h", "s").
func (s Suit) String() string {
	switch s {
	case Diamonds:
		return "d"
	case Clubs:
		return "c"
	case Hearts:
		return "h"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// Symbol returns the display glyph for a suit.
func (s Suit) Symbol() string {
	switch s {
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Diamonds or Hearts).
func (s Suit) IsRed() bool {
	return s == Diamonds || s == Hearts
}

// Rank represents a card rank. Threes are lowest and Twos are highest.
type Rank int

const (
	Three Rank = iota
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
	Two
)

// String returns the wire form of a rank.
func (r Rank) String() string {
	switch r {
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	case Two:
		return "2"
	default:
		return "?"
	}
}

// Card represents a playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// New creates a new card.
func New(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// ThreeOfDiamonds is the lowest card in the game and anchors the
// opening move of the first game in a room.
var ThreeOfDiamonds = Card{Rank: Three, Suit: Diamonds}

// String returns the wire form of a card (e.g. "Th", "2s").
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Order returns the position of the card in the total order, 0 for 3d
// through 51 for 2s. Rank dominates; suit breaks ties.
func (c Card) Order() int {
	return int(c.Rank)*4 + int(c.Suit)
}

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b.
func Compare(a, b Card) int {
	switch {
	case a.Order() < b.Order():
		return -1
	case a.Order() > b.Order():
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b in the total order.
func Less(a, b Card) bool {
	return a.Order() < b.Order()
}

// ParseCard parses the two-character wire form of a card. The rank is
// case-insensitive ("t" and "T" both mean ten), as is the suit.
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q: want <rank><suit>", s)
	}

	var rank Rank
	switch strings.ToUpper(s[:1]) {
	case "3":
		rank = Three
	case "4":
		rank = Four
	case "5":
		rank = Five
	case "6":
		rank = Six
	case "7":
		rank = Seven
	case "8":
		rank = Eight
	case "9":
		rank = Nine
	case "T":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	case "2":
		rank = Two
	default:
		return Card{}, fmt.Errorf("invalid card %q: unknown rank %q", s, s[:1])
	}

	var suit Suit
	switch strings.ToLower(s[1:]) {
	case "d":
		suit = Diamonds
	case "c":
		suit = Clubs
	case "h":
		suit = Hearts
	case "s":
		suit = Spades
	default:
		return Card{}, fmt.Errorf("invalid card %q: unknown suit %q", s, s[1:])
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// ParseCards parses a slice of wire-form cards, rejecting duplicates.
func ParseCards(strs []string) ([]Card, error) {
	cards := make([]Card, 0, len(strs))
	seen := make(map[Card]bool, len(strs))
	for _, s := range strs {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate card %q", s)
		}
		seen[c] = true
		cards = append(cards, c)
	}
	return cards, nil
}

// Strings returns the wire forms of a slice of cards.
func Strings(cards []Card) []string {
	strs := make([]string, len(cards))
	for i, c := range cards {
		strs[i] = c.String()
	}
	return strs
}

// Sort sorts cards in place, ascending in the total order.
func Sort(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return Less(cards[i], cards[j])
	})
}

// Sorted returns an ascending copy, leaving the input untouched.
func Sorted(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	Sort(out)
	return out
}

// Contains reports whether cards includes target.
func Contains(cards []Card, target Card) bool {
	for _, c := range cards {
		if c == target {
			return true
		}
	}
	return false
}

// ContainsAll reports whether cards includes every card in subset.
func ContainsAll(cards, subset []Card) bool {
	for _, c := range subset {
		if !Contains(cards, c) {
			return false
		}
	}
	return true
}

// Remove returns cards with every card in toRemove taken out.
func Remove(cards, toRemove []Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if !Contains(toRemove, c) {
			out = append(out, c)
		}
	}
	return out
}
