package types

type Command struct {
	// a unique identifier, usually the extension id and a command name separated by a period. This is what a user or
	// a keybinding passes to the host to run the command.
	Id string `json:"id" yaml:"id"`

	// a display or friendly name for this command as it would appear in a command palette.
	Title string `json:"title" yaml:"title"`

	// optional grouping shown in front of the title, e.g. "Agent: Hello World"
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

type Contributes struct {
	Commands []Command `json:"commands" yaml:"commands"`
}

type Manifest struct {
	// a unique identifier such as "vscode-agent". Commands contributed by the extension are expected to be prefixed
	// by this id, though the host does not enforce that.
	Id string `json:"id" yaml:"id"`

	Name        string `json:"name" yaml:"name"`
	Publisher   string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`

	// a version constraint (e.g. ">= 0.1.0, < 1.0.0") the host's EngineVersion must satisfy. Empty means any host.
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`

	// path of the WASM module implementing the extension, relative to the manifest. Empty for extensions compiled
	// into the host.
	Main string `json:"main,omitempty" yaml:"main,omitempty"`

	// events that cause the host to activate the extension, see Event.
	ActivationEvents []string `json:"activationEvents" yaml:"activationEvents"`

	Contributes Contributes `json:"contributes" yaml:"contributes"`
}

// CommandIds returns the ids of all commands the manifest contributes, in declaration order.
func (m Manifest) CommandIds() []string {
	ids := make([]string, 0, len(m.Contributes.Commands))
	for _, c := range m.Contributes.Commands {
		ids = append(ids, c.Id)
	}
	return ids
}
