package llm

// Model is an execution target a subtask can be addressed to.
type Model interface {
	// ID is the identifier carried on the wire as model_id.
	ID() string
}

// StaticModel is a Model described entirely by its fields.
type StaticModel struct {
	// Name is the model identifier.
	Name string `json:"name"`

	// Provider names the backend serving the model (e.g., "openai").
	Provider string `json:"provider,omitempty"`

	// Endpoint is where the provider can be reached, if not implied.
	Endpoint string `json:"endpoint,omitempty"`

	// Metadata holds free-form attributes published with the model.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewModel returns a StaticModel with only its identifier set.
func NewModel(id string) StaticModel {
	return StaticModel{Name: id}
}

// ID returns the model identifier.
func (m StaticModel) ID() string {
	return m.Name
}

// ModelID returns the id of m, or "unknown" when m is nil.
func ModelID(m Model) string {
	if m == nil {
		return "unknown"
	}
	return m.ID()
}
