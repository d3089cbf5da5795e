package furnace

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// eventKinds are the synthetic payload categories. The generator cycles
// through them pseudo-randomly but deterministically.
var eventKinds = []string{"observe", "mutate", "merge", "expire"}

// syntheticEvents produces n deterministic event payloads from the fixed
// seed. Event content is opaque to the artifact contract; the harness only
// requires that the same schedule is generated on every run.
func syntheticEvents(n int) []json.RawMessage {
	rng := rand.New(rand.NewSource(eventSeed))
	events := make([]json.RawMessage, n)
	for i := range events {
		events[i] = json.RawMessage(fmt.Sprintf(
			`{"seq":%d,"kind":%q,"key":"k%02d","value":%d}`,
			i,
			eventKinds[rng.Intn(len(eventKinds))],
			rng.Intn(16),
			rng.Int63n(1_000_000),
		))
	}
	return events
}

// probeEvent is the fixed event replayed before and after every T4 restart
// cycle. Behavior on this event must be identical pre- and post-reload.
var probeEvent = json.RawMessage(`{"seq":-1,"kind":"observe","key":"probe","value":0}`)

// initialState is the opaque state passed to the first ingest call.
var initialState = json.RawMessage(`null`)
