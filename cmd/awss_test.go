package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestActiveAWSSCmd(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantStart bool
	}{
		{"no args", nil, false},
		{"start", []string{"start"}, true},
		{"other arg", []string{"now"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotStart bool
			var gotAuth bool
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/awss/active" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var body struct {
					Start bool `json:"start"`
				}
				json.NewDecoder(r.Body).Decode(&body)
				gotStart = body.Start
				_, _, gotAuth = r.BasicAuth()
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(`{"status":"accepted","message":"provisioning queued"}`))
			}))
			defer ts.Close()

			cmd := CreateActiveAWSSCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetArgs(append([]string{"--addr", ts.URL, "--password", "secret"}, tt.args...))

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if gotStart != tt.wantStart {
				t.Errorf("start = %v, want %v", gotStart, tt.wantStart)
			}
			if !gotAuth {
				t.Error("basic auth not sent")
			}
			if !strings.Contains(out.String(), "provisioning queued") {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestPostActive_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := postActive(context.Background(), ts.Client(), ts.URL, "admin", "wrong", false)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want 401 status", err)
	}
}

func TestPostActive_Unreachable(t *testing.T) {
	_, err := postActive(context.Background(), http.DefaultClient, "http://127.0.0.1:1", "", "", false)
	if err == nil {
		t.Fatal("expected an error for an unreachable daemon")
	}
}
