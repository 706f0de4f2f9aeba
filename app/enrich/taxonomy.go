package enrich

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Taxonomy is the closed vocabulary the analysis stage is allowed to
// answer with. Loaded once at startup and injected into the analysis
// prompt; the model must not invent values outside it.
type Taxonomy struct {
	Topics            []string `yaml:"topics"`
	HookTypes         []string `yaml:"hook_types"`
	EmotionalTriggers []string `yaml:"emotional_triggers"`
}

func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var taxonomy Taxonomy
	if err := yaml.Unmarshal(data, &taxonomy); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}

	if len(taxonomy.Topics) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no topics", path)
	}
	if len(taxonomy.HookTypes) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no hook types", path)
	}
	if len(taxonomy.EmotionalTriggers) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no emotional triggers", path)
	}

	return &taxonomy, nil
}

// PromptSection renders the taxonomy as the vocabulary block of the
// analysis system prompt.
func (t *Taxonomy) PromptSection() string {
	var b strings.Builder

	b.WriteString("ALLOWED_TOPICS:\n")
	for _, topic := range t.Topics {
		fmt.Fprintf(&b, "- %q\n", topic)
	}

	b.WriteString("\nALLOWED_HOOK_TYPES:\n")
	for _, hook := range t.HookTypes {
		fmt.Fprintf(&b, "- %q\n", hook)
	}

	b.WriteString("\nALLOWED_EMOTIONAL_TRIGGERS:\n")
	for _, trigger := range t.EmotionalTriggers {
		fmt.Fprintf(&b, "- %q\n", trigger)
	}

	return b.String()
}
