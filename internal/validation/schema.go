package validation

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed cv_document.schema.json
var cvDocumentSchema []byte

var cvSchemaLoader = gojsonschema.NewBytesLoader(cvDocumentSchema)

// ValidateCVDocument checks an imported CV document against the bundled schema.
// The returned error lists every violation.
func ValidateCVDocument(raw []byte) ([]FieldError, error) {
	res, err := gojsonschema.Validate(cvSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("cv document: %w", err)
	}
	if res.Valid() {
		return nil, nil
	}
	details := make([]FieldError, 0, len(res.Errors()))
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, FieldError{
			Field:   e.Field(),
			Rule:    e.Type(),
			Message: e.Description(),
		})
		msgs = append(msgs, e.String())
	}
	return details, fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}
