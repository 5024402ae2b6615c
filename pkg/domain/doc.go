// Package domain defines the core business types and interfaces for the
// Concord orchestration core.
//
// This package contains pure domain logic with ZERO external dependencies
// outside the Go standard library. All types in this package are:
//
// - Independent of infrastructure (no database, HTTP, model providers, etc.)
// - Technology-agnostic (no framework coupling)
// - Testable in isolation without mocks
// - Stable and unlikely to change frequently
//
// Other packages (knowledge, policy, sandbox, triangulate, workflow) implement
// the interfaces defined here and depend on these types. The dependency
// direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
