// Package policy evaluates payloads against named compliance policies and
// issues approve/redact/deny decisions.
//
// Two policies are built in: allow_all approves every payload unmodified, and
// no_pii recursively scans nested mapping/sequence/scalar structures for
// emails, phone numbers, national-id-like digit sequences, and payment-card
// numbers (confirmed via the Luhn checksum before they count as violations).
// Additional policies can be registered programmatically, including
// Rego-backed policies evaluated through the embedded OPA engine.
//
// Enforcement is fully deterministic and side-effect free: identical payload
// and policy always yield an identical decision, and violation records never
// carry the raw matched value outside the immediate call.
package policy
