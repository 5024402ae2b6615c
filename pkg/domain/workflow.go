package domain

import "context"

// Task is one node in a Card's dependency graph. Parameters may contain
// ${var} tokens that are resolved against the run context before execution.
// Each task writes only its own output key, which defaults to the task ID.
type Task struct {
	ID         string         `json:"id" yaml:"id"`
	ToolRef    string         `json:"tool" yaml:"tool"`
	Parameters map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	OutputKey  string         `json:"output_key,omitempty" yaml:"output_key,omitempty"`

	// Gate routes the task output through policy enforcement before it is
	// committed to the run context. GatePolicy names the policy to apply.
	Gate       bool   `json:"gate,omitempty" yaml:"gate,omitempty"`
	GatePolicy string `json:"gate_policy,omitempty" yaml:"gate_policy,omitempty"`
}

// Output returns the context key the task writes.
func (t Task) Output() string {
	if t.OutputKey != "" {
		return t.OutputKey
	}
	return t.ID
}

// Card is a declarative, named, versioned workflow template. It holds no
// execution logic: tasks reference tools by ID and the dossier spec maps
// final context values into the deliverable.
type Card struct {
	Name                 string             `json:"name" yaml:"name"`
	Version              int                `json:"version" yaml:"version"`
	RequiredInputs       []string           `json:"required_inputs,omitempty" yaml:"required_inputs,omitempty"`
	Tasks                []Task             `json:"tasks" yaml:"tasks"`
	DossierSpec          map[string]string  `json:"dossier,omitempty" yaml:"dossier,omitempty"`
	AcceptanceThresholds map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Clone returns a deep copy of the card so catalog consumers cannot mutate
// the registered template.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	clone := &Card{
		Name:           c.Name,
		Version:        c.Version,
		RequiredInputs: append([]string(nil), c.RequiredInputs...),
	}
	if len(c.Tasks) > 0 {
		clone.Tasks = make([]Task, len(c.Tasks))
		for i, task := range c.Tasks {
			clone.Tasks[i] = task
			clone.Tasks[i].DependsOn = append([]string(nil), task.DependsOn...)
			if len(task.Parameters) > 0 {
				params := make(map[string]any, len(task.Parameters))
				for k, v := range task.Parameters {
					params[k] = v
				}
				clone.Tasks[i].Parameters = params
			}
		}
	}
	if len(c.DossierSpec) > 0 {
		clone.DossierSpec = make(map[string]string, len(c.DossierSpec))
		for k, v := range c.DossierSpec {
			clone.DossierSpec[k] = v
		}
	}
	if len(c.AcceptanceThresholds) > 0 {
		clone.AcceptanceThresholds = make(map[string]float64, len(c.AcceptanceThresholds))
		for k, v := range c.AcceptanceThresholds {
			clone.AcceptanceThresholds[k] = v
		}
	}
	return clone
}

// Dossier is the final named-artifact bundle assembled from a completed run's
// context per the card's dossier spec.
type Dossier map[string]any

// Tool is a named callable a workflow task invokes. Params are the task
// parameters after ${var} resolution; runCtx is a read-only snapshot of the
// run context at dispatch time.
type Tool interface {
	Run(ctx context.Context, params map[string]any, runCtx map[string]any) (any, error)
}

// ToolResolver looks up registered tools by ID.
type ToolResolver interface {
	ResolveTool(id string) (Tool, bool)
}
