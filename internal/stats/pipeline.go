// Package stats scores finished games and keeps per-room ledgers.
//
// Scoring runs as a small pipeline: collectors pull raw facts out of a
// finished game, then calculators fold them into scores in priority
// order, so later stages see the work of earlier ones.
package stats

import (
	"sort"
	"time"

	"github.com/mkchan/bigtwo/internal/identity"
)

// Penalty scoring: hands of ten or more cards score double.
const (
	TenPlusThreshold = 10
	TenPlusFactor    = 2
)

// GameSummary is the raw material handed to the pipeline when a game
// finishes.
type GameSummary struct {
	Room        string
	GameNumber  int
	Winner      string
	CardCounts  map[string]int
	CompletedAt time.Time
}

// PlayerResult is one player's scored line in a finished game.
type PlayerResult struct {
	Player         string `json:"player"`
	CardsRemaining int    `json:"cards_remaining"`
	RawScore       int    `json:"raw_score"`
	FinalScore     int    `json:"final_score"`
	Won            bool   `json:"won"`
}

// GameResult is a fully scored game.
type GameResult struct {
	Room        string         `json:"room"`
	GameNumber  int            `json:"game_number"`
	Winner      string         `json:"winner"`
	Players     []PlayerResult `json:"players"`
	CompletedAt time.Time      `json:"completed_at"`
	HadBots     bool           `json:"had_bots"`
}

// Collector pulls a raw fact from the summary into a player's line.
type Collector interface {
	Name() string
	Collect(sum GameSummary, p *PlayerResult)
}

// Calculator folds scores into a player's line. Lower priority runs
// first, so multipliers can build on base scores.
type Calculator interface {
	Name() string
	Priority() int
	Calculate(sum GameSummary, p *PlayerResult)
}

// CardsRemainingCollector copies each player's remaining card count.
type CardsRemainingCollector struct{}

func (CardsRemainingCollector) Name() string { return "cards_remaining" }

func (CardsRemainingCollector) Collect(sum GameSummary, p *PlayerResult) {
	p.CardsRemaining = sum.CardCounts[p.Player]
}

// CardCountScore scores one point per card left in hand. The winner
// holds no cards and scores zero.
type CardCountScore struct{}

func (CardCountScore) Name() string  { return "card_count" }
func (CardCountScore) Priority() int { return 10 }

func (CardCountScore) Calculate(_ GameSummary, p *PlayerResult) {
	p.RawScore = p.CardsRemaining
	p.FinalScore = p.RawScore
}

// TenPlusMultiplier doubles the score of hands still holding ten or
// more cards.
type TenPlusMultiplier struct{}

func (TenPlusMultiplier) Name() string  { return "ten_plus" }
func (TenPlusMultiplier) Priority() int { return 20 }

func (TenPlusMultiplier) Calculate(_ GameSummary, p *PlayerResult) {
	if p.CardsRemaining >= TenPlusThreshold {
		p.FinalScore = p.RawScore * TenPlusFactor
	}
}

// Pipeline scores every player in a finished game.
type Pipeline struct {
	collectors  []Collector
	calculators []Calculator
}

// Builder assembles a pipeline stage by stage.
type Builder struct {
	p Pipeline
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Collect(c Collector) *Builder {
	b.p.collectors = append(b.p.collectors, c)
	return b
}

func (b *Builder) Calculate(c Calculator) *Builder {
	b.p.calculators = append(b.p.calculators, c)
	return b
}

// Build sorts calculators by priority and returns the pipeline.
func (b *Builder) Build() *Pipeline {
	p := b.p
	sort.SliceStable(p.calculators, func(i, j int) bool {
		return p.calculators[i].Priority() < p.calculators[j].Priority()
	})
	return &p
}

// DefaultPipeline is the standard scoring stack.
func DefaultPipeline() *Pipeline {
	return NewBuilder().
		Collect(CardsRemainingCollector{}).
		Calculate(CardCountScore{}).
		Calculate(TenPlusMultiplier{}).
		Build()
}

// Run scores a finished game. Players are listed in id order so the
// output is deterministic.
func (p *Pipeline) Run(sum GameSummary) GameResult {
	players := make([]string, 0, len(sum.CardCounts))
	for id := range sum.CardCounts {
		players = append(players, id)
	}
	sort.Strings(players)

	result := GameResult{
		Room:        sum.Room,
		GameNumber:  sum.GameNumber,
		Winner:      sum.Winner,
		Players:     make([]PlayerResult, 0, len(players)),
		CompletedAt: sum.CompletedAt,
	}
	for _, id := range players {
		line := PlayerResult{Player: id, Won: id == sum.Winner}
		for _, c := range p.collectors {
			c.Collect(sum, &line)
		}
		for _, c := range p.calculators {
			c.Calculate(sum, &line)
		}
		result.Players = append(result.Players, line)
		if identity.IsBot(id) {
			result.HadBots = true
		}
	}
	return result
}
