// Package async provides utilities for parallel task execution.
//
// [RunParallel] runs named tasks concurrently and [Collect] runs n indexed tasks
// whose results land in an index-aligned slice. Both wait for every started task
// before returning, so no side effect is left running behind a returned error;
// the first error observed is the one reported.
package async
