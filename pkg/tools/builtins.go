package tools

import (
	"github.com/concordia-ai/concord-oss/pkg/domain"
	"github.com/concordia-ai/concord-oss/pkg/registry"
	"github.com/concordia-ai/concord-oss/pkg/sandbox"
	"github.com/concordia-ai/concord-oss/pkg/triangulate"
)

// Deps carries the components the built-in tools are bound to. Any nil
// field simply leaves the corresponding tools unregistered.
type Deps struct {
	Store    domain.KnowledgeStore
	Router   *triangulate.Router
	Checker  *triangulate.Checker
	Executor *sandbox.Executor
}

// RegisterBuiltins wires the built-in tools into a tool registry under
// their canonical references.
func RegisterBuiltins(reg *registry.ToolRegistry, deps Deps) {
	if deps.Store != nil {
		reg.RegisterTool("knowledge.ground", NewGroundTool(deps.Store), "ground")
		reg.RegisterTool("knowledge.writeback", NewWritebackTool(deps.Store), "writeback")
	}
	if deps.Router != nil {
		reg.RegisterTool("triangulate", NewTriangulateTool(deps.Router, deps.Checker), "triangulate.route")
	}
	if deps.Executor != nil {
		reg.RegisterTool("sandbox.execute", NewSandboxTool(deps.Executor), "sandbox")
	}
}
