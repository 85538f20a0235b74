// Package scope provides structured-concurrency primitives for Go.
// Scopes own the tasks they spawn, provide a join point (Join), and
// propagate cancellation and failures predictably: a failing task in a
// structured scope cancels its siblings and surfaces exactly one primary
// failure, with concurrent failures attached as suppressed. Supervising
// scopes isolate child failures instead. Every task carries an immutable
// element set derived from its scope plus per-task overrides.
package scope
