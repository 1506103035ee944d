package portal

import (
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{remoteAddr: "10.0.0.9:52011", want: "10.0.0.9"},
		{remoteAddr: "[::1]:8080", want: "::1"},
		{remoteAddr: "10.0.0.9", want: "10.0.0.9"},
	}

	for _, tt := range tests {
		r := &http.Request{RemoteAddr: tt.remoteAddr}
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: unique, want: true},
		{name: "wrapped", err: fmt.Errorf("create user: %w", unique), want: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAuthor, RoleEditor, RoleAdmin} {
		if !validRole(role) {
			t.Errorf("validRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "reviewer", "Admin", "root"} {
		if validRole(role) {
			t.Errorf("validRole(%q) = true", role)
		}
	}
}

func TestJSONStringsRoundtrip(t *testing.T) {
	in := []string{"mesh refinement", "finite elements"}
	out := stringsFromJSON(toJSONStrings(in))
	if !reflect.DeepEqual(out, in) {
		t.Errorf("roundtrip = %v, want %v", out, in)
	}

	if got := stringsFromJSON(nil); len(got) != 0 || got == nil {
		t.Errorf("stringsFromJSON(nil) = %#v, want empty non-nil slice", got)
	}
	if got := stringsFromJSON(datatypes.JSON(`{"not":"a list"}`)); len(got) != 0 {
		t.Errorf("stringsFromJSON(malformed) = %v", got)
	}
	if got := toJSONStrings(nil); string(got) != "[]" {
		t.Errorf("toJSONStrings(nil) = %s", got)
	}
}

func TestJSONMapConversions(t *testing.T) {
	src := datatypes.JSONMap{"title": "A", "pages": float64(12)}
	out := mapFromJSONMap(src)
	if !reflect.DeepEqual(out, map[string]any{"title": "A", "pages": float64(12)}) {
		t.Errorf("mapFromJSONMap = %v", out)
	}

	if got := mapFromJSONMap(nil); got == nil || len(got) != 0 {
		t.Errorf("mapFromJSONMap(nil) = %#v, want empty non-nil map", got)
	}
	if got := toJSONMap(nil); got == nil || len(got) != 0 {
		t.Errorf("toJSONMap(nil) = %#v, want empty non-nil map", got)
	}

	back := toJSONMap(out)
	if !reflect.DeepEqual(mapFromJSONMap(back), out) {
		t.Errorf("map roundtrip lost data: %v", back)
	}
}
