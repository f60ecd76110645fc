package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/hand"
)

func cards(t *testing.T, strs ...string) []card.Card {
	t.Helper()
	out, err := card.ParseCards(strs)
	require.NoError(t, err)
	return card.Sorted(out)
}

// beatsHand adapts a table hand into the Situation callback the
// gameflow view provides.
func beatsHand(t *testing.T, strs ...string) func([]card.Card) bool {
	t.Helper()
	table, err := hand.Classify(cards(t, strs...))
	require.NoError(t, err)
	return func(cs []card.Card) bool {
		h, err := hand.Classify(cs)
		if err != nil || h.Size() != table.Size() {
			return false
		}
		return hand.Beats(h, table)
	}
}

func TestLeadPlaysLowestSingle(t *testing.T) {
	t.Parallel()

	got, play := ChooseMove(Situation{Hand: cards(t, "Kh", "4c", "9s", "3h")})
	require.True(t, play)
	assert.Equal(t, cards(t, "3h"), got)
}

func TestOpeningLeadAnchorsOnThreeOfDiamonds(t *testing.T) {
	t.Parallel()

	anchor := card.ThreeOfDiamonds
	got, play := ChooseMove(Situation{
		Hand:        cards(t, "3d", "4c", "9s"),
		MustInclude: &anchor,
	})
	require.True(t, play)
	assert.Equal(t, cards(t, "3d"), got)
}

func TestFollowPlaysWeakestWinningSingle(t *testing.T) {
	t.Parallel()

	got, play := ChooseMove(Situation{
		Hand:      cards(t, "3c", "9h", "Jd", "2s"),
		TrickLive: true,
		TrickSize: 1,
		Beats:     beatsHand(t, "8d"),
	})
	require.True(t, play)
	assert.Equal(t, cards(t, "9h"), got, "weakest single that still beats the eight")
}

func TestFollowPairBeatsPair(t *testing.T) {
	t.Parallel()

	got, play := ChooseMove(Situation{
		Hand:      cards(t, "5c", "5h", "Td", "Th", "2s"),
		TrickLive: true,
		TrickSize: 2,
		Beats:     beatsHand(t, "7c", "7d"),
	})
	require.True(t, play)
	assert.Equal(t, cards(t, "Td", "Th"), got)
}

func TestFollowPassesWithNoAnswer(t *testing.T) {
	t.Parallel()

	_, play := ChooseMove(Situation{
		Hand:      cards(t, "3c", "4h", "5d"),
		TrickLive: true,
		TrickSize: 1,
		Beats:     beatsHand(t, "2s"),
	})
	assert.False(t, play, "nothing beats the two of spades")
}

func TestFollowFiveCardFindsWeakestHand(t *testing.T) {
	t.Parallel()

	// Holds both a straight (5-6-7-8-9) and a flush; the straight is
	// the weaker category and wins the trick, so it is chosen.
	got, play := ChooseMove(Situation{
		Hand:      cards(t, "5c", "6d", "7h", "8s", "9c", "3h", "6h", "9h", "Jh", "Kh"),
		TrickLive: true,
		TrickSize: 5,
		Beats:     beatsHand(t, "3c", "4d", "5s", "6s", "7s"),
	})
	require.True(t, play)
	h, err := hand.Classify(got)
	require.NoError(t, err)
	assert.Equal(t, hand.Straight, h.Kind)
}

func TestEmptyHandNeverPlays(t *testing.T) {
	t.Parallel()

	_, play := ChooseMove(Situation{})
	assert.False(t, play)
}

func TestCombinationsVisitEverySubset(t *testing.T) {
	t.Parallel()

	var count int
	combinations(cards(t, "3c", "4c", "5c", "6c", "7c", "8c"), 2, func(cs []card.Card) {
		assert.Len(t, cs, 2)
		count++
	})
	assert.Equal(t, 15, count) // C(6,2)
}
