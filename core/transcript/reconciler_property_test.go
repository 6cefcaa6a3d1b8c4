package transcript

import (
	"fmt"
	"testing"

	"github.com/koscakluka/ema-ui/core/realtime"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPrefixExtensionProperty checks that for any sequence of snapshots where
// each extends the previous one, the history matches the message item count
// and every appended message is reported exactly once, in order.
func TestPrefixExtensionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("appended messages are reported once and in order", prop.ForAll(
		func(kinds []int, cuts []int) bool {
			items := make([]realtime.Item, 0, len(kinds))
			for i, kind := range kinds {
				id := fmt.Sprintf("item_%d", i)
				switch kind % 3 {
				case 0:
					items = append(items, textItem(id, "user", id))
				case 1:
					items = append(items, audioItem(id, "assistant", nil))
				default:
					items = append(items, realtime.Item{ID: id, Type: realtime.ItemTypeFunctionCall})
				}
			}

			reconciler := NewReconciler()
			reported := []string{}
			end := 0
			for _, cut := range append(cuts, len(items)) {
				end += cut
				if end > len(items) {
					end = len(items)
				}
				snapshot := items[:end]

				delta := reconciler.Reconcile(snapshot)
				if len(delta.History) != countMessages(snapshot) {
					return false
				}
				for _, message := range delta.Added {
					reported = append(reported, message.ID)
				}
			}

			expected := []string{}
			for _, item := range items {
				if item.Type == realtime.ItemTypeMessage {
					expected = append(expected, item.ID)
				}
			}
			if len(reported) != len(expected) {
				return false
			}
			for i := range expected {
				if reported[i] != expected[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func countMessages(items []realtime.Item) int {
	count := 0
	for _, item := range items {
		if item.Type == realtime.ItemTypeMessage {
			count++
		}
	}
	return count
}
