package datasets

import (
	"fmt"
	"strings"
)

// InputFormat renders an example into the text fed to the encoder. The
// formatter is resolved once per dataset, not per example.
type InputFormat interface {
	// Format returns the encoder input text. When multitask is set the text
	// is prefixed with the owning dataset's task descriptor so one model can
	// tell datasets apart.
	Format(ex *InputExample, multitask bool) string
}

// OutputFormat renders an example's target structure into the text the model
// is trained to produce. The four methods are alternative surface forms of
// the same structure; OutputFormatType selects which one the feature
// compiler calls.
type OutputFormat interface {
	// ShortWithRelation renders "head | relation | tail" triples joined
	// by " ; ".
	ShortWithRelation(ex *InputExample) string

	// Short renders "head | tail" pairs joined by " ; ", dropping the
	// relation label.
	Short(ex *InputExample) string

	// Long renders one clause per relation in natural-language form.
	Long(ex *InputExample) string

	// Original renders the source sentence with every entity wrapped in a
	// "[ span | type ]" annotation.
	Original(ex *InputExample) string
}

var (
	inputFormats = map[string]InputFormat{
		"plain": plainInput{},
	}
	outputFormats = map[string]OutputFormat{
		"relation": relationOutput{},
	}
)

// RegisterInputFormat makes an input formatter available under the given
// name, replacing any previous registration.
func RegisterInputFormat(name string, f InputFormat) {
	inputFormats[name] = f
}

// RegisterOutputFormat makes an output formatter available under the given
// name, replacing any previous registration.
func RegisterOutputFormat(name string, f OutputFormat) {
	outputFormats[name] = f
}

func lookupInputFormat(name string) (InputFormat, error) {
	f, ok := inputFormats[name]
	if !ok {
		return nil, fmt.Errorf("unknown input format %q", name)
	}
	return f, nil
}

func lookupOutputFormat(name string) (OutputFormat, error) {
	f, ok := outputFormats[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q", name)
	}
	return f, nil
}

// plainInput joins the example tokens, optionally prefixed with the task
// descriptor of the owning dataset.
type plainInput struct{}

func (plainInput) Format(ex *InputExample, multitask bool) string {
	sentence := ex.Sentence()
	if !multitask {
		return sentence
	}
	descriptor := ex.Dataset
	if d := ex.owner(); d != nil {
		descriptor = d.TaskDescriptor()
	}
	if descriptor == "" {
		return sentence
	}
	return descriptor + " : " + sentence
}

// relationOutput renders gold relation triples.
type relationOutput struct{}

func (relationOutput) ShortWithRelation(ex *InputExample) string {
	parts := make([]string, 0, len(ex.Relations))
	for _, rel := range ex.Relations {
		head := ex.EntitySpan(rel.Head)
		tail := ex.EntitySpan(rel.Tail)
		parts = append(parts, head+" | "+rel.Type+" | "+tail)
	}
	return strings.Join(parts, " ; ")
}

func (relationOutput) Short(ex *InputExample) string {
	parts := make([]string, 0, len(ex.Relations))
	for _, rel := range ex.Relations {
		parts = append(parts, ex.EntitySpan(rel.Head)+" | "+ex.EntitySpan(rel.Tail))
	}
	return strings.Join(parts, " ; ")
}

func (relationOutput) Long(ex *InputExample) string {
	parts := make([]string, 0, len(ex.Relations))
	for _, rel := range ex.Relations {
		head := ex.EntitySpan(rel.Head)
		tail := ex.EntitySpan(rel.Tail)
		parts = append(parts, "the relation between "+head+" and "+tail+" is "+rel.Type)
	}
	return strings.Join(parts, " ; ")
}

func (relationOutput) Original(ex *InputExample) string {
	// Walk the tokens, replacing each entity span with its annotated form.
	// Entities are assumed non-overlapping; overlapping spans keep the first.
	startToEntity := make(map[int]Entity, len(ex.Entities))
	for _, ent := range ex.Entities {
		if ent.Start < 0 || ent.End > len(ex.Tokens) || ent.Start >= ent.End {
			continue
		}
		if _, ok := startToEntity[ent.Start]; !ok {
			startToEntity[ent.Start] = ent
		}
	}

	var parts []string
	for i := 0; i < len(ex.Tokens); {
		if ent, ok := startToEntity[i]; ok {
			span := strings.Join(ex.Tokens[ent.Start:ent.End], " ")
			parts = append(parts, "[ "+span+" | "+ent.Type+" ]")
			i = ent.End
			continue
		}
		parts = append(parts, ex.Tokens[i])
		i++
	}
	return strings.Join(parts, " ")
}
