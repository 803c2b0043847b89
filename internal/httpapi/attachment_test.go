package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/merge"
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
)

func TestOutputFileName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"clash", "clash.yaml", false},
		{" my.yml ", "my.yml", false},
		{"机场", "机场.yaml", false},
		{".hidden", ".hidden.yaml", false},
		{"a/b", "", true},
		{`a\b`, "", true},
		{"a\r\nb", "", true},
		{strings.Repeat("x", 201), "", true},
	}
	for _, tc := range cases {
		got, err := outputFileName(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("outputFileName(%q) err=%v, wantErr=%v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("outputFileName(%q)=%q, want=%q", tc.in, got, tc.want)
		}
	}
}

func TestContentDispositionAttachment(t *testing.T) {
	got := contentDispositionAttachment(`a "b".yaml`)
	want := `attachment; filename="a \"b\".yaml"; filename*=UTF-8''a%20%22b%22.yaml`
	if got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"request", requestError("INVALID_ARGUMENT", "x", ""), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"fetch", &fetch.FetchError{Status: http.StatusGatewayTimeout, AppError: model.AppError{Code: "FETCH_TIMEOUT"}}, http.StatusGatewayTimeout, "FETCH_TIMEOUT"},
		{"fetch inside expand", &ruleset.ExpandError{
			AppError: model.AppError{Code: "RULESET_FETCH_ERROR"},
			Cause:    &fetch.FetchError{Status: http.StatusBadGateway, AppError: model.AppError{Code: "FETCH_FAILED"}},
		}, http.StatusBadGateway, "FETCH_FAILED"},
		{"merge", &merge.MergeError{AppError: model.AppError{Code: "CONFIG_INVALID"}}, http.StatusUnprocessableEntity, "CONFIG_INVALID"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, app := statusOf(tc.err)
		if status != tc.status || app.Code != tc.code {
			t.Fatalf("%s: status=%d code=%q, want=%d %q", tc.name, status, app.Code, tc.status, tc.code)
		}
	}
}
