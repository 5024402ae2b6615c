// Package triangulate dispatches a task to several independent models
// concurrently, adjudicates the candidates by weighted rubric, and
// self-checks outputs against grounding evidence.
//
// Route issues one concurrent unit of work per model and joins with a
// latency-budget deadline: units still running at the deadline are abandoned
// with a best-effort cancellation signal and recorded with a timeout outcome,
// never silently merged. Admission control checks each model's estimated cost
// against the remaining ceiling before it is invoked; models that would
// breach it are skipped, never invoked.
package triangulate
