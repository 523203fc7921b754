package transform

import (
	"testing"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArraysRoundTrip(t *testing.T) {
	in := models.Document{"tags": []interface{}{"x", "y"}, "name": "Al"}
	ser, err := SerializeArrays{}.Apply(in.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, ser["tags_array"])
	assert.NotContains(t, ser, "tags")

	back, err := DeserializeArrays{}.Apply(ser, Context{})
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestDeserializeArraysLeavesBadJSON(t *testing.T) {
	in := models.Document{"tags_array": "not json", "n": 1}
	out, err := DeserializeArrays{}.Apply(in.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTripWithoutArraysOrNesting(t *testing.T) {
	in := models.Document{"name": "Al", "user_id": 7, "created_at": "x", "score": 1.5}

	out, err := Combine(SerializeArrays{}, DeserializeArrays{}).Apply(in, Context{})
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = Combine(Flatten{}, Unflatten{}).Apply(in, Context{})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFlattenUnflattenNested(t *testing.T) {
	in := models.Document{
		"name": "Al",
		"home_address": models.Document{
			"city": "Oslo",
			"geo":  models.Document{"lat": 1.5, "lng": 2.5},
		},
		"meta": models.Document{"created_at": "t"},
	}

	flat, err := Flatten{}.Apply(in.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "Oslo", flat["home_address_city"])
	assert.Equal(t, 1.5, flat["home_address_geo_lat"])
	assert.Equal(t, "t", flat["meta_created_at"])
	assert.JSONEq(t, `{
		"home_address_city": ["home_address", "city"],
		"home_address_geo_lat": ["home_address", "geo", "lat"],
		"home_address_geo_lng": ["home_address", "geo", "lng"],
		"meta_created_at": ["meta", "created_at"]
	}`, flat[FlattenMarker].(string))

	again, err := Flatten{}.Apply(flat.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, flat, again)

	back, err := Unflatten{}.Apply(flat, Context{})
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestFlattenRespectsMaxDepth(t *testing.T) {
	in := models.Document{"a": models.Document{"b": models.Document{"c": models.Document{"d": 1}}}}
	out, err := Flatten{MaxDepth: 2}.Apply(in, Context{})
	require.NoError(t, err)
	assert.Equal(t, models.Document{"c": models.Document{"d": 1}}, out["a_b"])

	again, err := Flatten{MaxDepth: 2}.Apply(out.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, out, again)

	back, err := Unflatten{}.Apply(again, Context{})
	require.NoError(t, err)
	assert.Equal(t, models.Document{"a": models.Document{"b": models.Document{"c": models.Document{"d": 1}}}}, back)
}

func TestFlattenCollisionFailsRecord(t *testing.T) {
	in := models.Document{"a": models.Document{"b": 1}, "a_b": 2}
	_, err := Flatten{}.Apply(in.Clone(), Context{Table: "users", OriginalKey: "k1"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "k1", verr.Key)
	assert.Contains(t, err.Error(), `"a_b" collides`)

	_, err = Flatten{}.Apply(models.Document{
		"a": models.Document{"b_c": 1, "b": models.Document{"c": 2}},
	}, Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a_b_c" is produced twice`)
}

func TestUnflattenLeavesLookalikeKeys(t *testing.T) {
	in := models.Document{"profile": models.Document{"city": "Oslo"}, "profile_id": "7"}

	flat, err := Flatten{}.Apply(in.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "7", flat["profile_id"])

	back, err := Unflatten{}.Apply(flat, Context{})
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestUnflattenRejectsBrokenMarker(t *testing.T) {
	_, err := Unflatten{}.Apply(models.Document{FlattenMarker: "profile", "profile_city": "Oslo"}, Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), FlattenMarker)
}

func TestUnflattenHeuristicKeepsTimestampNames(t *testing.T) {
	out, err := Unflatten{Heuristic: true}.Apply(models.Document{
		"created_at":    "t1",
		"updated_at":    "t2",
		"profile_city":  "Oslo",
		"profile_since": "2020",
	}, Context{})
	require.NoError(t, err)
	assert.Equal(t, models.Document{
		"created_at": "t1",
		"updated_at": "t2",
		"profile":    models.Document{"city": "Oslo", "since": "2020"},
	}, out)
}

func TestUnflattenWithoutMarkerIsNoop(t *testing.T) {
	in := models.Document{"user_id": 1}
	out, err := Unflatten{}.Apply(in.Clone(), Context{})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
