// Package bot fills empty seats with server-side players. A manager
// adds and removes bots on host command; a subscriber watches turn
// changes and plays for bot seats after a short think delay.
package bot

import (
	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/hand"
)

// Difficulty labels a bot's strategy. Only the basic strategy ships;
// the label is carried for clients and future tiers.
const DefaultDifficulty = "easy"

// Situation describes the table from the acting bot's point of view.
// Hand is sorted ascending. Beats reports whether a candidate set
// would take the trick; it is nil when the trick is dead and the bot
// leads. MustInclude anchors game one's opening move to the three of
// diamonds.
type Situation struct {
	Hand        []card.Card
	TrickLive   bool
	TrickSize   int
	Beats       func([]card.Card) bool
	MustInclude *card.Card
}

// ChooseMove picks the bot's action: the cards to play, or pass.
//
// Leading, the bot plays its lowest single (the opening anchor is the
// lowest card of whoever holds it, so game one's constraint is free).
// Following, it enumerates every same-size subset of its hand,
// classifies each, and plays the weakest one that beats the table;
// with no legal answer it passes.
func ChooseMove(sit Situation) ([]card.Card, bool) {
	if len(sit.Hand) == 0 {
		return nil, false
	}

	if !sit.TrickLive {
		lead := []card.Card{sit.Hand[0]}
		if sit.MustInclude != nil && !card.Contains(lead, *sit.MustInclude) {
			lead = []card.Card{*sit.MustInclude}
		}
		return lead, true
	}

	var best *hand.Hand
	combinations(sit.Hand, sit.TrickSize, func(cards []card.Card) {
		if sit.Beats != nil && !sit.Beats(cards) {
			return
		}
		h, err := hand.Classify(cards)
		if err != nil {
			return
		}
		if best == nil || hand.Beats(*best, h) {
			c := h
			best = &c
		}
	})
	if best == nil {
		return nil, false
	}
	return best.Cards, true
}

// combinations visits every k-subset of cards in ascending order.
func combinations(cards []card.Card, k int, visit func([]card.Card)) {
	if k <= 0 || k > len(cards) {
		return
	}
	idx := make([]int, k)
	pick := make([]card.Card, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			for i, j := range idx {
				pick[i] = cards[j]
			}
			visit(pick)
			return
		}
		for i := start; i <= len(cards)-(k-depth); i++ {
			idx[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}
