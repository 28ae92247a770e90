// Package shell contains the imperative shell shared by the command and query features of
// the library lending service: retry with exponential backoff for optimistic concurrency
// conflicts, the HandlerResult reported by command handlers, the observability helpers used
// by the observable wrappers, and the best-effort side-effect ports (notifications, blob release).
//
// In Hexagonal Architecture terminology, this would be called the 'infrastructure' layer.
package shell
