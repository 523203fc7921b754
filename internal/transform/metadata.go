package transform

import (
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/BartekS5/docshift/pkg/utils"
)

// Fields added on ingress.
const (
	FieldMigratedFrom = "migratedFrom"
	FieldMigratedAt   = "migratedAt"
)

// Bookkeeping returns the backend-specific fields stripped on egress.
func Bookkeeping(k models.Kind) []string {
	switch k {
	case models.KindMongo:
		return []string{"_id", "__v"}
	case models.KindSQL:
		return []string{"rowid", "seq", "tbl"}
	default:
		return nil
	}
}

// StripMetadata removes bookkeeping fields of the source kind.
type StripMetadata struct {
	Kind models.Kind
}

func (StripMetadata) Name() string { return "strip-metadata" }

func (t StripMetadata) Apply(doc models.Document, _ Context) (models.Document, error) {
	for _, f := range Bookkeeping(t.Kind) {
		delete(doc, f)
	}
	return doc, nil
}

// AddMetadata records provenance and fills missing timestamps.
// Existing migratedFrom/migratedAt values are overwritten.
type AddMetadata struct{}

func (AddMetadata) Name() string { return "add-metadata" }

func (AddMetadata) Apply(doc models.Document, tc Context) (models.Document, error) {
	from := tc.FromProvider
	if from == "" {
		from = string(tc.From)
	}
	ts := utils.FormatISO(tc.now())
	doc[FieldMigratedFrom] = from
	doc[FieldMigratedAt] = ts
	for _, f := range []string{store.FieldCreatedAt, store.FieldUpdatedAt} {
		if v, ok := doc[f]; !ok || v == nil {
			doc[f] = ts
		}
	}
	return doc, nil
}

// ApplyDefaults fills fields absent from the document. Incoming values win.
type ApplyDefaults struct {
	Defaults models.Document
}

func (ApplyDefaults) Name() string { return "apply-defaults" }

func (t ApplyDefaults) Apply(doc models.Document, _ Context) (models.Document, error) {
	for k, v := range t.Defaults.Clone() {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	return doc, nil
}
