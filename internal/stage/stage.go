// Package stage owns the eight-stage fulfillment workflow vocabulary: stage
// validation, display-name lookup, and the textual rendering of stage
// transitions for the ledger.
package stage

import (
	"fmt"

	"github.com/seaboundhq/seabound/internal/entity"
)

// Names maps a workflow stage to its display name. It is injected from
// configuration; the engine never owns the names themselves.
type Names map[int]string

// Name resolves the display name for stage n, degrading to "Stage <n>" when
// the mapping has no entry.
func (n Names) Name(s int) string {
	if name, ok := n[s]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Stage %d", s)
}

// Validate returns an error when n is outside the workflow bounds.
func Validate(n int) error {
	if !entity.StageValid(n) {
		return fmt.Errorf("stage %d outside [%d,%d]", n, entity.StageMin, entity.StageMax)
	}
	return nil
}

// TransitionText renders the "<previous> → <new>" line recorded on the
// ledger for every stage change, including no-op and backward moves.
func TransitionText(names Names, previous, next int) string {
	return fmt.Sprintf("%s → %s", names.Name(previous), names.Name(next))
}
