package i18n

import (
	"slices"
	"testing"
)

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	if fallback := GetCatalog("missing-locale"); fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if blank := GetCatalog("  "); blank != base {
		t.Fatal("expected blank locale to use en-US catalog")
	}
}

func TestFormat(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"PLACEMENT_CELL_OCCUPIED": "Cell {{.Row}},{{.Col}} in {{.Zone}} is taken.",
		"BROKEN_PARSE":            "{{ if .Zone }}",
		"BROKEN_EXEC":             "{{ call .Zone }}",
	})

	tests := []struct {
		name     string
		code     Code
		metadata map[string]string
		want     string
	}{
		{
			name:     "full metadata",
			code:     "PLACEMENT_CELL_OCCUPIED",
			metadata: map[string]string{"Row": "2", "Col": "5", "Zone": "soi6"},
			want:     "Cell 2,5 in soi6 is taken.",
		},
		{
			name: "missing metadata renders empty",
			code: "PLACEMENT_CELL_OCCUPIED",
			want: "Cell , in  is taken.",
		},
		{
			name: "unknown code",
			code: "PLACEMENT_UNKNOWN",
			want: "PLACEMENT_UNKNOWN",
		},
		{
			name:     "parse failure keeps raw text",
			code:     "BROKEN_PARSE",
			metadata: map[string]string{"Zone": "soi6"},
			want:     "{{ if .Zone }}",
		},
		{
			name:     "execution failure keeps raw text",
			code:     "BROKEN_EXEC",
			metadata: map[string]string{"Zone": "soi6"},
			want:     "{{ call .Zone }}",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cat.Format(tc.code, tc.metadata); got != tc.want {
				t.Fatalf("format = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewCatalogCopiesMessages(t *testing.T) {
	messages := map[Code]string{"PLACEMENT_ZONE_NOT_FOUND": "Zone {{.Zone}} is unknown."}
	cat := NewCatalog("test", messages)
	messages["PLACEMENT_ZONE_NOT_FOUND"] = "changed"

	if got := cat.Format("PLACEMENT_ZONE_NOT_FOUND", map[string]string{"Zone": "soi9"}); got != "Zone soi9 is unknown." {
		t.Fatalf("format = %q", got)
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}

func TestGetCatalogFillsUntranslatedCodesFromBase(t *testing.T) {
	th := GetCatalog("th-TH")
	if th.Locale() != "th-TH" {
		t.Fatalf("locale = %q, want th-TH", th.Locale())
	}
	got := th.Format("PLACEMENT_ENTITY_NOT_FOUND", map[string]string{"EntityID": "bar-a", "Zone": "soi6"})
	if got != "Entity bar-a was not found in soi6." {
		t.Fatalf("format = %q", got)
	}
	if got := th.Format("PLACEMENT_ZONE_NOT_FOUND", map[string]string{"Zone": "soi9"}); got == "PLACEMENT_ZONE_NOT_FOUND" {
		t.Fatal("expected translated template")
	}
	if !slices.Equal(th.Codes(), GetCatalog("en-US").Codes()) {
		t.Fatalf("th-TH codes = %v, want the en-US set", th.Codes())
	}
}
