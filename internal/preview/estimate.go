package preview

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/dustin/go-humanize"
)

// largeRecordBytes is the average record size above which throughput is
// scaled down proportionally.
const largeRecordBytes = 4096

type kindPair struct{ from, to models.Kind }

// throughput holds the records per second assumed for each backend pair.
var throughput = map[kindPair]float64{
	{models.KindMemory, models.KindMemory}: 5000,
	{models.KindMemory, models.KindMongo}:  1000,
	{models.KindMemory, models.KindSQL}:    400,
	{models.KindMongo, models.KindMemory}:  2000,
	{models.KindMongo, models.KindMongo}:   800,
	{models.KindMongo, models.KindSQL}:     300,
	{models.KindSQL, models.KindMemory}:    1500,
	{models.KindSQL, models.KindMongo}:     600,
	{models.KindSQL, models.KindSQL}:       250,
}

const fallbackThroughput = 100

func recordsPerSecond(from, to models.Kind, avgRecordBytes int) float64 {
	rps, ok := throughput[kindPair{from, to}]
	if !ok {
		rps = fallbackThroughput
	}
	if avgRecordBytes > largeRecordBytes {
		rps *= float64(largeRecordBytes) / float64(avgRecordBytes)
	}
	return rps
}

// estimate rounds to whole seconds, with a one second minimum for
// non-empty migrations.
func estimate(records int, rps float64) time.Duration {
	if records == 0 || rps <= 0 {
		return 0
	}
	secs := math.Ceil(float64(records) / rps)
	return time.Duration(secs) * time.Second
}

func recommendations(p *Preview, src, dst models.Capabilities) []string {
	var hasArrays, hasObjects, hasArrayFields, hasFlattened, renames bool
	out := []string{}
	for _, t := range p.Tables {
		for _, f := range t.Fields {
			hasArrays = hasArrays || f.HasType("array")
			hasObjects = hasObjects || f.HasType("object")
			hasArrayFields = hasArrayFields || strings.HasSuffix(f.Name, transform.ArraySuffix)
			hasFlattened = hasFlattened || f.Name == transform.FlattenMarker
			renames = renames || !transform.ValidKey(p.To, f.Name)
		}
		if t.RecordCount > bigTableRecords {
			out = append(out, fmt.Sprintf("table %s has %s records: enable backupBeforeMigration and run a dry run first",
				t.Table, humanize.Comma(int64(t.RecordCount))))
		}
	}

	if hasArrays && !dst.NativeArrays {
		out = append(out, "arrays will be serialized to JSON strings in <field>"+transform.ArraySuffix+" fields")
	}
	if hasObjects && !dst.NestedObjects {
		out = append(out, "nested objects will be flattened into underscore-joined fields")
	}
	if hasArrayFields && !src.NativeArrays && dst.NativeArrays {
		out = append(out, "serialized <field>"+transform.ArraySuffix+" values will be restored to arrays")
	}
	if hasFlattened && !src.NestedObjects && dst.NestedObjects {
		out = append(out, "flattened documents will be rebuilt into nested objects")
	}
	if renames {
		out = append(out, fmt.Sprintf("field names invalid for %s will be sanitized", p.To))
	}
	if p.From == models.KindMongo && p.To != models.KindMongo {
		out = append(out, "native timestamps will be converted to ISO-8601 strings")
	}
	if p.To == models.KindSQL {
		out = append(out, "set writesPerSecond on the target if it enforces write-rate limits")
	}
	return out
}
