package card

import (
	"math/rand"
)

// HandSize is the number of cards dealt to each seat.
const HandSize = 13

// Seats is the number of players at a table.
const Seats = 4

// Deck represents a standard 52-card deck.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand // random source for deterministic shuffling
}

// NewDeck creates a new shuffled deck with an explicit RNG. A nil rng
// falls back to the global source.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}

	i := 0
	for rank := Three; rank <= Two; rank++ {
		for suit := Diamonds; suit <= Spades; suit++ {
			d.cards[i] = New(rank, suit)
			i++
		}
	}

	d.Shuffle()
	return d
}

// Shuffle reshuffles the full deck using Fisher-Yates.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.Intn(i + 1)
		} else {
			j = rand.Intn(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck, or nil if fewer remain.
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealHands deals four sorted 13-card hands, consuming the whole deck.
func (d *Deck) DealHands() [Seats][]Card {
	var hands [Seats][]Card
	for seat := 0; seat < Seats; seat++ {
		hands[seat] = d.Deal(HandSize)
		Sort(hands[seat])
	}
	return hands
}

// CardsRemaining returns the number of cards left in the deck.
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}

// Reset resets and reshuffles the deck.
func (d *Deck) Reset() {
	d.Shuffle()
}

// OpeningSeat returns the seat index holding the three of diamonds.
func OpeningSeat(hands [Seats][]Card) int {
	for seat, hand := range hands {
		if Contains(hand, ThreeOfDiamonds) {
			return seat
		}
	}
	return 0
}
