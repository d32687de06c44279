package domain

import "errors"

// Taxonomy kinds. Every domain error unwraps to exactly one of these.
var (
	ErrNotFound              = errors.New("not_found")
	ErrInvalidStageForAction = errors.New("invalid_stage_for_action")
	ErrDuplicateSubmission   = errors.New("duplicate_submission")
	ErrInsufficientFunds     = errors.New("insufficient_funds")
	ErrLimitExceeded         = errors.New("limit_exceeded")
	ErrNotAMember            = errors.New("not_a_member")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyFinished       = errors.New("already_finished")
	ErrInvalidRequest        = errors.New("invalid_request")
)

var (
	ErrGameNotFound     = &CodeError{Code: "game_not_found", Kind: ErrNotFound}
	ErrRoomNotFound     = &CodeError{Code: "room_not_found", Kind: ErrNotFound}
	ErrUnknownAlgorithm = &CodeError{Code: "unknown_algorithm", Kind: ErrNotFound}
	ErrItemNotFound     = &CodeError{Code: "item_not_found", Kind: ErrNotFound}
	ErrSpellNotFound    = &CodeError{Code: "spell_not_found", Kind: ErrNotFound}
	ErrEffectNotFound   = &CodeError{Code: "effect_not_found", Kind: ErrNotFound}
	ErrNotOwned         = &CodeError{Code: "not_owned", Kind: ErrNotFound}
	ErrItemLimit        = &CodeError{Code: "item_limit_exceeded", Kind: ErrLimitExceeded}
	ErrSpellLimit       = &CodeError{Code: "spell_limit_exceeded", Kind: ErrLimitExceeded}
	ErrRoomFull         = &CodeError{Code: "room_full", Kind: ErrLimitExceeded}
	ErrNotHost          = &CodeError{Code: "not_host", Kind: ErrForbidden}
	ErrKicked           = &CodeError{Code: "kicked", Kind: ErrForbidden}
	ErrPlayersNotReady  = &CodeError{Code: "players_not_ready", Kind: ErrForbidden}
	ErrGameInProgress   = &CodeError{Code: "game_in_progress", Kind: ErrForbidden}
	ErrPassiveSpell     = &CodeError{Code: "passive_spell", Kind: ErrForbidden}
	ErrAlgorithmBanned  = &CodeError{Code: "algorithm_banned", Kind: ErrForbidden}
	ErrNotInGame        = &CodeError{Code: "not_in_game", Kind: ErrNotAMember}
	ErrAlreadyJoined    = &CodeError{Code: "already_joined", Kind: ErrDuplicateSubmission}
	ErrInvalidQuantity  = &CodeError{Code: "invalid_quantity", Kind: ErrInvalidRequest}
	ErrInvalidGameType  = &CodeError{Code: "invalid_game_type", Kind: ErrInvalidRequest}
	ErrInvalidTarget    = &CodeError{Code: "invalid_target", Kind: ErrInvalidRequest}
)

// CodeError is a specific domain error that renders its own code and
// unwraps to its taxonomy kind.
type CodeError struct {
	Code string
	Kind error
}

func (e *CodeError) Error() string {
	return e.Code
}

func (e *CodeError) Unwrap() error {
	return e.Kind
}

var kinds = []error{
	ErrNotFound,
	ErrInvalidStageForAction,
	ErrDuplicateSubmission,
	ErrInsufficientFunds,
	ErrLimitExceeded,
	ErrNotAMember,
	ErrForbidden,
	ErrAlreadyFinished,
	ErrInvalidRequest,
}

// Kind maps err to its taxonomy code, or "internal" for infrastructure errors.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal"
}

// IsDomain reports whether err is a caller-visible, non-retryable domain error.
func IsDomain(err error) bool {
	k := Kind(err)
	return k != "" && k != "internal"
}
