package aggregate

import "github.com/Sternrassler/epoxy/pkg/client"

// Combine maps every endpoint to its tree, or to the failure marker when
// absent. Duplicate endpoints collide: the later slot wins.
func Combine(result Result) map[string]any {
	combined := make(map[string]any, len(result))
	for _, slot := range result {
		combined[slot.Endpoint] = render(slot.Outcome)
	}
	return combined
}

// Append returns one single-entry map per slot, in order.
func Append(result Result) []map[string]any {
	appended := make([]map[string]any, 0, len(result))
	for _, slot := range result {
		appended = append(appended, map[string]any{slot.Endpoint: render(slot.Outcome)})
	}
	return appended
}

func render(outcome client.Outcome) any {
	tree, ok := outcome.Value()
	if !ok {
		return client.FailedMarker
	}
	return tree
}
