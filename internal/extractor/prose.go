package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
)

const personLabel = "PERSON"

// proseModel loads prose's bundled tagger and NER weights once. The model is
// only read after loading, so documents on different goroutines share it.
var proseModel = sync.OnceValue(func() *prose.Model {
	doc, _ := prose.NewDocument("", prose.WithSegmentation(false))
	return doc.Model
})

// ProseRecognizer finds person entities with prose's built-in NER model.
// Each line is tagged on its own so an entity never spans a line break.
type ProseRecognizer struct{}

// NewProseRecognizer returns a recognizer backed by prose.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

var _ PersonEntityRecognizer = (*ProseRecognizer)(nil)

// FindPersonEntities implements PersonEntityRecognizer.
func (r *ProseRecognizer) FindPersonEntities(ctx context.Context, text string) ([]string, error) {
	model := proseModel()
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		doc, err := prose.NewDocument(line, prose.UsingModel(model), prose.WithSegmentation(false))
		if err != nil {
			return nil, fmt.Errorf("prose document: %w", err)
		}
		names = append(names, personEntities(doc.Entities())...)
	}
	return names, nil
}

func personEntities(ents []prose.Entity) []string {
	var names []string
	for _, ent := range ents {
		if ent.Label == personLabel {
			names = append(names, ent.Text)
		}
	}
	return names
}
