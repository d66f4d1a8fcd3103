package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/umleitung/pkg/api"
)

func TestListModels(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var list api.ModelList
	decodeJSON(t, resp, &list)

	if list.Object != api.ObjectList {
		t.Errorf("object = %q, want list", list.Object)
	}
	if len(list.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(list.Data))
	}

	ids := map[string]bool{}
	for _, m := range list.Data {
		ids[m.ID] = true
		if m.Object != api.ObjectModel {
			t.Errorf("model object = %q, want model", m.Object)
		}
		if m.OwnedBy != "anthropic" {
			t.Errorf("owned_by = %q, want anthropic", m.OwnedBy)
		}
		if m.Created == 0 {
			t.Errorf("model %s has no created timestamp", m.ID)
		}
	}
	if !ids["mock-model"] || !ids["mock-model-thinking"] {
		t.Errorf("model IDs = %v", ids)
	}
}

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "ok") {
		t.Errorf("body = %q, want to contain 'ok'", body)
	}
}
