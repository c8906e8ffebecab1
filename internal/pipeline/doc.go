// Package pipeline runs the post-fetch processing steps for a crawled
// page: content extraction, language annotation, and storage.
//
// Steps implement a small interface and are registered explicitly, in
// order. The pipeline executes them sequentially for one fetched page;
// concurrency across pages is the crawler's worker pool, not the
// pipeline's concern.
//
// Design decision: We use an interface rather than function types because:
//  1. It allows steps to carry configuration state
//  2. It provides a Name() method for logging and debugging
//  3. It's more extensible for future features (e.g., conditional steps)
package pipeline
