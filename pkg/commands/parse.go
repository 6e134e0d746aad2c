package commands

import (
	"math"
	"strconv"
	"strings"
)

// SyntaxError is a malformed command. Its message is shown to the caller.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

var (
	errWrongSyntax = &SyntaxError{Msg: "Wrong syntax"}
	errParsing     = &SyntaxError{Msg: "Parsing error"}
	errPlayerTimed = &SyntaxError{Msg: "Wrong syntax, Should be AddPlayerToTimedGroup eos_id hours delayHours"}
	errTribeTimed  = &SyntaxError{Msg: "Wrong syntax, Should be AddTribeToTimedGroup tribeId hours delayHours"}
)

const (
	secondsPerHour = 3600.0
	// about a million years; keeps hours*3600 well inside int64
	maxHours = 1e10
)

// Parse splits a command body into tokens, dropping empty ones
func Parse(body string) []string {
	return strings.Fields(body)
}

// parseTribeID parses an unsigned tribe ID
func parseTribeID(s string) (int64, error) {
	id, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, errParsing
	}
	return int64(id), nil
}

// parseTimed converts "hours [delayHours]" to seconds. The returned duration
// includes the delay.
func parseTimed(args []string, syntax *SyntaxError) (durationSecs, delaySecs int64, err error) {
	hours, err := parseHours(args[0])
	if err != nil {
		return 0, 0, err
	}
	if hours < 0 {
		return 0, 0, syntax
	}
	durationSecs = int64(hours * secondsPerHour)

	if len(args) > 1 {
		delayHours, err := parseHours(args[1])
		if err != nil {
			return 0, 0, err
		}
		if delayHours < 0 {
			return 0, 0, syntax
		}
		delaySecs = int64(delayHours * secondsPerHour)
		durationSecs += delaySecs
	}

	if durationSecs < 0 || delaySecs < 0 {
		return 0, 0, syntax
	}
	return durationSecs, delaySecs, nil
}

func parseHours(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) > maxHours {
		return 0, errParsing
	}
	return v, nil
}
