package enums

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionSendMessage    Action = "send_message"
	ActionSendCompliment Action = "send_compliment"
	ActionRightSwipe     Action = "right_swipe"
	ActionSuperLike      Action = "super_like"
	ActionBoost          Action = "boost"
	ActionViewProfile    Action = "view_profile"
	ActionUseIncognito   Action = "use_incognito"
	ActionHideLocation   Action = "hide_location"
	ActionAdvancedFilter Action = "advanced_filter"
)

func (a Action) Known() bool {
	switch a {
	case ActionSendMessage, ActionSendCompliment, ActionRightSwipe, ActionSuperLike,
		ActionBoost, ActionViewProfile, ActionUseIncognito, ActionHideLocation, ActionAdvancedFilter:
		return true
	default:
		return false
	}
}

func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !action.Known() {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return action, nil
}
