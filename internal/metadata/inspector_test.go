package metadata

import (
	"testing"

	"numerus/internal/core/entity"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/workspace"
)

func fieldsByName(def EntityDef) map[string]FieldDef {
	m := make(map[string]FieldDef, len(def.Fields))
	for _, f := range def.Fields {
		m[f.Name] = f
	}
	return m
}

func TestInspectDocument(t *testing.T) {
	def := Inspect(entity.Document{}, "Document", TypeDocument)

	if def.Name != "Document" || def.Type != TypeDocument {
		t.Fatalf("unexpected def header: %+v", def)
	}

	f := fieldsByName(def)

	kind, ok := f["kind"]
	if !ok {
		t.Fatal("kind field missing")
	}
	if kind.Type != TypeEnum || !kind.Required {
		t.Errorf("kind = %+v, want required enum", kind)
	}
	if len(kind.Options) != 3 {
		t.Errorf("kind options = %v", kind.Options)
	}

	if st := f["status"]; st.Type != TypeEnum || !st.ReadOnly {
		t.Errorf("status = %+v, want read-only enum", st)
	}
	if num := f["number"]; num.Type != TypeString || !num.ReadOnly {
		t.Errorf("number = %+v, want read-only string", num)
	}
	if ws := f["workspaceId"]; ws.Type != TypeReference || ws.ReferenceType != "Workspace" || !ws.Required {
		t.Errorf("workspaceId = %+v, want required reference to Workspace", ws)
	}
	if total := f["total"]; total.Type != TypeMoney || total.Scale != 2 {
		t.Errorf("total = %+v, want money with scale 2", total)
	}
	if d := f["date"]; d.Type != TypeDate || !d.Required {
		t.Errorf("date = %+v, want required date", d)
	}
	if attrs := f["attributes"]; attrs.Type != TypeObject {
		t.Errorf("attributes = %+v, want object", attrs)
	}
	if v := f["version"]; v.Type != TypeInteger || !v.ReadOnly {
		t.Errorf("version = %+v, want read-only integer", v)
	}

	// CDC columns carry json:"-" and must not leak into the API shape.
	if _, ok := f["-"]; ok {
		t.Error("json:\"-\" field leaked into definition")
	}
}

func TestInspectWorkspace(t *testing.T) {
	def := Inspect(workspace.Workspace{}, "Workspace", TypeCatalog)
	f := fieldsByName(def)

	// ParentID points back at the workspace hierarchy itself.
	if p := f["parentId"]; p.Type != TypeReference || p.ReferenceType != "Workspace" {
		t.Errorf("parentId = %+v, want self reference", p)
	}
	if cn := f["companyName"]; cn.Type != TypeString || !cn.Required {
		t.Errorf("companyName = %+v, want required string", cn)
	}
	if amn := f["allowManualNumbers"]; amn.Type != TypeBoolean {
		t.Errorf("allowManualNumbers = %+v, want boolean", amn)
	}
	if code := f["code"]; code.Required {
		t.Errorf("code = %+v, codes may be auto-generated", code)
	}
}

func TestInspectLink(t *testing.T) {
	def := Inspect(conversion.Link{}, "DocumentLink", TypeRegister)
	f := fieldsByName(def)

	if src := f["sourceId"]; src.Type != TypeReference || src.ReferenceType != "Document" {
		t.Errorf("sourceId = %+v, want reference to Document", src)
	}
	if der := f["derivedId"]; der.Type != TypeReference || der.ReferenceType != "Document" {
		t.Errorf("derivedId = %+v, want reference to Document", der)
	}
	if pk := f["linkId"]; !pk.ReadOnly || pk.ReferenceType != "" {
		t.Errorf("linkId = %+v, want read-only primary key", pk)
	}
}

func TestGuessLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Workspace", "Workspace"},
		{"WorkspaceID", "Workspace ID"},
		{"AllowManualNumbers", "Allow Manual Numbers"},
		{"ID", "ID"},
		{"CDCFields", "CDC Fields"},
	}
	for _, tt := range tests {
		if got := guessLabel(tt.in); got != tt.want {
			t.Errorf("guessLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(EntityDef{Name: "Workspace"})
	reg.Register(EntityDef{Name: "Document"})
	reg.Register(EntityDef{Name: "DocumentLink"})

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	for i, want := range []string{"Document", "DocumentLink", "Workspace"} {
		if list[i].Name != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, want)
		}
	}
}
