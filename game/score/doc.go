// Package score persists the high score of each application identity.
//
// The only persisted value is one integer per application identity, plus a
// note of the run that set it. FileStore keeps it in a single JSON file;
// MemoryStore keeps it in memory for tests and throwaway sessions.
//
// Usage:
//
//	store, err := score.NewFileStore("scores.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	best, _ := store.HighScore("snek")
//	isRecord, err := store.Record("snek", score.Result{
//		RunID: uuid.New(),
//		Score: 12,
//	})
package score
