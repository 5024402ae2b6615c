// Package tools provides the built-in tools that cards reference by name.
// Each tool adapts one core component (knowledge store, triangulator,
// sandbox) to the generic tool contract so workflows can compose them
// without knowing their concrete APIs.
package tools
