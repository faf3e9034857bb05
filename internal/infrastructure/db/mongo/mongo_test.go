package mongo

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

func rawOf(t *testing.T, v any) bson.RawValue {
	t.Helper()
	typ, data, err := bson.MarshalValue(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return bson.RawValue{Type: typ, Value: data}
}

func TestRoleDoc_PermissionsShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want []string
	}{
		{"array", bson.A{"installations:read", "users:write"}, []string{"installations:read", "users:write"}},
		{"json string", `["admin:*"]`, []string{"admin:*"}},
		{"garbage string", "nope", []string{}},
		{"number", int32(3), []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := roleDoc{Permissions: rawOf(t, tc.raw)}.toDomain().Permissions
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("permissions = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJSONShape_UsesJSONKeys(t *testing.T) {
	got, err := jsonShape(domain.Change{Before: map[string]int{"quantity": 1}, After: nil})
	if err != nil {
		t.Fatalf("jsonShape: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", got)
	}
	if _, ok := m["before"]; !ok {
		t.Fatalf("expected json key 'before', got %v", m)
	}

	if v, _ := jsonShape(nil); v != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestContains_EscapesRegex(t *testing.T) {
	got := contains("a.b(c")
	if got["$regex"] != `a\.b\(c` || got["$options"] != "i" {
		t.Fatalf("unexpected regex filter: %v", got)
	}
}

func TestSortOrders(t *testing.T) {
	newest := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if !reflect.DeepEqual(sortNewestFirst, newest) {
		t.Fatalf("newest first = %v", sortNewestFirst)
	}
	if !reflect.DeepEqual(sortByName, bson.D{{Key: "name", Value: 1}}) {
		t.Fatalf("by name = %v", sortByName)
	}
	items := bson.D{{Key: "order_index", Value: 1}, {Key: "created_at", Value: 1}}
	if !reflect.DeepEqual(sortChecklistItems, items) {
		t.Fatalf("checklist items = %v", sortChecklistItems)
	}
}

func TestPagedPipeline(t *testing.T) {
	match := bson.M{"installation_id": "inst-1"}

	got := pagedPipeline(match, sortNewestFirst, domain.Page{Limit: 10, Offset: 20})
	if len(got) != 4 {
		t.Fatalf("expected match, sort, skip, limit; got %v", got)
	}
	wantKeys := []string{"$match", "$sort", "$skip", "$limit"}
	for i, k := range wantKeys {
		if got[i][0].Key != k {
			t.Fatalf("stage %d = %s, want %s", i, got[i][0].Key, k)
		}
	}
	if got[2][0].Value != int64(20) || got[3][0].Value != int64(10) {
		t.Fatalf("unexpected window: %v", got)
	}

	if unbounded := pagedPipeline(match, sortNewestFirst, domain.Page{}); len(unbounded) != 3 {
		t.Fatalf("zero limit should not add a $limit stage: %v", unbounded)
	}
}

func TestSubResourcePipelines_NewestFirst(t *testing.T) {
	match := bson.M{"installation_id": "inst-1"}
	p := domain.Page{Limit: 50}

	cases := map[string]struct {
		pipeline []bson.D
		join     string
	}{
		"checklist responses": {responsesPipeline(match, p), colChecklistItems},
		"crew assignments":    {assignmentsPipeline(match, p), colUsers},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sort := tc.pipeline[1][0]
			if sort.Key != "$sort" || !reflect.DeepEqual(sort.Value, sortNewestFirst) {
				t.Fatalf("expected newest first sort, got %v", sort)
			}
			lookup := tc.pipeline[4][0]
			if lookup.Key != "$lookup" {
				t.Fatalf("join must follow the page window, got %v", lookup)
			}
			from := lookup.Value.(bson.D)[0]
			if from.Key != "from" || from.Value != tc.join {
				t.Fatalf("unexpected join source: %v", from)
			}
		})
	}
}

func TestResponseSet_OnlyProvidedFields(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	set, err := responseSet(ports.ResponsePatch{Value: ports.Of[any](map[string]any{"ok": true})}, at)
	if err != nil {
		t.Fatalf("responseSet: %v", err)
	}
	if _, ok := set["completed_at"]; ok {
		t.Fatalf("absent completed_at must not be written: %v", set)
	}
	if set["updated_at"] != at || set["value"] == nil {
		t.Fatalf("unexpected set: %v", set)
	}

	done := time.Date(2026, 3, 1, 11, 0, 0, 0, time.FixedZone("x", 3600))
	set, err = responseSet(ports.ResponsePatch{CompletedAt: ports.Of(done)}, at)
	if err != nil {
		t.Fatalf("responseSet: %v", err)
	}
	if _, ok := set["value"]; ok {
		t.Fatalf("absent value must not be written: %v", set)
	}
	got, ok := set["completed_at"].(*time.Time)
	if !ok || !got.Equal(done) || got.Location() != time.UTC {
		t.Fatalf("completed_at not normalized to UTC: %v", set["completed_at"])
	}

	set, err = responseSet(ports.ResponsePatch{Value: ports.Null[any](), CompletedAt: ports.Null[time.Time]()}, at)
	if err != nil {
		t.Fatalf("responseSet: %v", err)
	}
	v, hasValue := set["value"]
	c, hasCompleted := set["completed_at"]
	if !hasValue || v != nil || !hasCompleted || c.(*time.Time) != nil {
		t.Fatalf("explicit nulls must clear both fields: %v", set)
	}
}
