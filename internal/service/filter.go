package service

import (
	"sort"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// Evaluate reports whether msg should raise a notification under rs: true
// when any enabled rule with a role ID is mentioned by the message.
func Evaluate(msg model.InboundMessage, rs model.RuleSet) bool {
	for _, r := range rs {
		if r.Enabled && msg.HasRole(r.RoleID) {
			return true
		}
	}
	return false
}

// Match is Evaluate that also names the matching rules, sorted.
func Match(msg model.InboundMessage, rs model.RuleSet) ([]string, bool) {
	var names []string
	for _, r := range rs {
		if r.Enabled && msg.HasRole(r.RoleID) {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, len(names) > 0
}
