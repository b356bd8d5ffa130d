package game

import "errors"

var (
	ErrUnknownGame     = errors.New("unknown game type")
	ErrInvalidContract = errors.New("invalid game contract")
)

// AliasError reports a state whose player list is not the room's canonical roster.
type AliasError string

func (e AliasError) Error() string { return "roster alias broken: " + string(e) }
