// Package aggregate fans a list of endpoints out to concurrent fetches and
// assembles the ordered outcomes into one of two response shapes.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig("epoxy/0.1.0"))
//	agg := aggregate.New(c, aggregate.DefaultConfig())
//	combined, err := agg.Combined(ctx, aggregate.Request{
//		Endpoints: []string{"https://a.example/users", "https://b.example/feed.xml"},
//		Policy:    client.PolicyReplace,
//	})
//
// The aggregator:
//   - Builds one immutable client.CallConfig per request before fan-out
//   - Starts one fetch per endpoint, each bounded by the request timeout
//   - Writes every outcome into the slot of its input index
//   - Waits for all fetches before handing the Result to the assembler
//   - Under fail_any, cancels in-flight siblings and returns an error
//     wrapping client.ErrAggregationFailed
//
// Combine keys the outcomes by endpoint (later duplicates win). Append keeps
// one single-entry map per input endpoint, duplicates included.
package aggregate
