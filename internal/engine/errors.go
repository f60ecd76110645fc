package engine

import "fmt"

// Code identifies a rule violation in a stable wire form.
type Code string

const (
	CodeNotYourTurn        Code = "NOT_YOUR_TURN"
	CodeDontOwnCards       Code = "DONT_OWN_CARDS"
	CodeInvalidHand        Code = "INVALID_HAND"
	CodeWrongCardCount     Code = "WRONG_CARD_COUNT"
	CodeCannotBeatLastHand Code = "CANNOT_BEAT_LAST_HAND"
	CodeMustIncludeLowest  Code = "MUST_INCLUDE_THREE_OF_DIAMONDS"
	CodeLeaderCannotPass   Code = "LEADER_CANNOT_PASS"
	CodeGameOver           Code = "GAME_OVER"
)

// RuleError reports a rejected action. Game state is never modified
// when a RuleError is returned.
type RuleError struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return e.Message
}

func ruleError(code Code, format string, args ...any) *RuleError {
	return &RuleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRuleError unwraps err as a RuleError if it is one.
func AsRuleError(err error) (*RuleError, bool) {
	re, ok := err.(*RuleError)
	return re, ok
}
