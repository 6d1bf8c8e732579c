package qdrantDB

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

func mustConditions(t *testing.T, filter *qdrant.Filter) map[string]*qdrant.FieldCondition {
	t.Helper()
	byKey := make(map[string]*qdrant.FieldCondition)
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		if field == nil {
			t.Fatalf("unexpected non-field condition: %v", cond)
		}
		byKey[field.GetKey()] = field
	}
	return byKey
}

func TestQueryFilter_RequiresActiveSource(t *testing.T) {
	r := commonModels.Requester{UserId: "u-1", Email: "dana@acme.test", GroupIds: []string{"g-sales"}}
	byKey := mustConditions(t, queryFilter("t-1", r, nil))

	status, found := byKey["source_status"]
	if !found {
		t.Fatal("filter must constrain source status; disabled sources stay mirrored until the next sync")
	}
	if status.GetMatch().GetKeyword() != "active" {
		t.Fatalf("status condition should match active, got %v", status.GetMatch())
	}

	tenant, found := byKey["tenant_id"]
	if !found || tenant.GetMatch().GetKeyword() != "t-1" {
		t.Fatalf("tenant condition missing or wrong: %v", tenant)
	}

	acl, found := byKey["acl"]
	if !found {
		t.Fatal("grant condition missing")
	}
	keys := acl.GetMatch().GetKeywords().GetStrings()
	wantKeys := map[string]bool{"public:all": false, "user:u-1": false, "email:dana@acme.test": false, "group:g-sales": false}
	for _, k := range keys {
		if _, wanted := wantKeys[k]; wanted {
			wantKeys[k] = true
		}
	}
	for k, seen := range wantKeys {
		if !seen {
			t.Errorf("principal key %q missing from acl condition %v", k, keys)
		}
	}

	if _, found := byKey["connector_type"]; found {
		t.Error("unfiltered personas must not constrain connector type")
	}
}

func TestQueryFilter_ConnectorNarrowing(t *testing.T) {
	r := commonModels.Requester{UserId: "u-1"}
	byKey := mustConditions(t, queryFilter("t-1", r, []commonModels.ConnectorType{commonModels.ConnectorDrive}))

	connector, found := byKey["connector_type"]
	if !found {
		t.Fatal("connector condition missing")
	}
	types := connector.GetMatch().GetKeywords().GetStrings()
	if len(types) != 1 || types[0] != "drive" {
		t.Fatalf("connector condition should carry the persona's types, got %v", types)
	}
}
