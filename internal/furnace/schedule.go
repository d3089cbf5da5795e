package furnace

// Torture schedules are compiled constants. Identical artifacts must produce
// identical verdicts across runs and across hosts, so none of these values
// are configurable.

// ingestCount is how many synthetic events T2 feeds through ingest before
// degradation begins.
const ingestCount = 1000

// truncationLevels is the descending retained-history schedule for T2. At
// each level the lineage is cut to that many most-recent entries and audit
// must still return OK or a well-formed HALT.
var truncationLevels = []int{1000, 500, 250, 100, 50, 10}

// byteBudgets is the descending compaction schedule for T3. The serialized
// compacted state must fit each budget and still satisfy audit.
var byteBudgets = []int{8000, 5000, 3000, 1000}

// restartCycles is the number of T4 serialize/teardown/reload cycles.
const restartCycles = 5

// eventSeed seeds the synthetic event generator. Fixed so the input
// schedule is identical on every run.
const eventSeed = 0x5AF1C0DE
