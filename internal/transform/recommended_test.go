package transform

import (
	"testing"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendedCoversEveryPair(t *testing.T) {
	for _, from := range models.Kinds {
		for _, to := range models.Kinds {
			chain, err := Recommended(from, to)
			require.NoError(t, err)
			require.NotEmpty(t, chain, "%s -> %s", from, to)
			assert.Equal(t, "add-metadata", chain[len(chain)-1].Name())
		}
	}
}

func TestRecommendedRejectsInvalidKinds(t *testing.T) {
	_, err := Recommended("redis", models.KindSQL)
	assert.Error(t, err)
	assert.Error(t, NewTable().Register(models.KindSQL, "redis", nil))
}

func TestRecommendedFallsBackToSanitize(t *testing.T) {
	chain, err := NewTable().Recommended(models.KindMongo, models.KindSQL)
	require.NoError(t, err)
	assert.Equal(t, []string{"sanitize-field-names"}, chain.Names())
}

func TestTagsScenarioToRelationalAndBack(t *testing.T) {
	toSQL, err := Recommended(models.KindMongo, models.KindSQL)
	require.NoError(t, err)
	out, err := toSQL.Apply(models.Document{"_id": "a", "tags": []interface{}{"x", "y"}}, ctxFor(models.KindMongo, models.KindSQL))
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, out["tags_array"])
	assert.NotContains(t, out, "tags")
	assert.NotContains(t, out, "_id")

	fromSQL, err := Recommended(models.KindSQL, models.KindMongo)
	require.NoError(t, err)
	back, err := fromSQL.Apply(out, ctxFor(models.KindSQL, models.KindMongo))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y"}, back["tags"])
	assert.NotContains(t, back, "tags_array")
}

func TestNestedRoundTripThroughRelational(t *testing.T) {
	in := models.Document{"profile": map[string]interface{}{"city": "Oslo", "langs": []interface{}{"no", "en"}}}

	toSQL, _ := Recommended(models.KindMongo, models.KindSQL)
	flat, err := toSQL.Apply(in, ctxFor(models.KindMongo, models.KindSQL))
	require.NoError(t, err)
	assert.Equal(t, "Oslo", flat["profile_city"])
	assert.Equal(t, `["no","en"]`, flat["profile_langs_array"])

	fromSQL, _ := Recommended(models.KindSQL, models.KindMongo)
	back, err := fromSQL.Apply(flat, ctxFor(models.KindSQL, models.KindMongo))
	require.NoError(t, err)
	assert.Equal(t, models.Document{"city": "Oslo", "langs": []interface{}{"no", "en"}}, back["profile"])
	assert.NotContains(t, back, FlattenMarker)
}

func TestRecommendedChainsAreIdempotent(t *testing.T) {
	in := models.Document{
		"_id":        "a",
		"name":       "Al",
		"tags":       []interface{}{"x"},
		"profile":    models.Document{"city": "Oslo"},
		"deep":       models.Document{"a": models.Document{"b": models.Document{"c": models.Document{"d": 1}}}},
		"created_at": fixedNow.UnixMilli(),
		"bad.key":    1,
	}
	for _, from := range models.Kinds {
		for _, to := range models.Kinds {
			chain, err := Recommended(from, to)
			require.NoError(t, err)
			tc := ctxFor(from, to)

			once, err := chain.Apply(in, tc)
			require.NoError(t, err)
			twice, err := chain.Apply(once, tc)
			require.NoError(t, err)
			assert.Equal(t, once, twice, "%s -> %s", from, to)
		}
	}
}
