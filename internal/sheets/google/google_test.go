package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"moneyguard/internal/core"
	ports "moneyguard/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestToValues(t *testing.T) {
	rows := []ports.Row{{Date: "01/05/24", Type: core.Expense, Category: "Car", Comment: "fuel", Amount: -40}}
	values := toValues(rows)
	if len(values) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(values))
	}
	if values[0][0] != "Date" || values[0][4] != "Sum" {
		t.Errorf("unexpected header %v", values[0])
	}
	if values[1][1] != "EXPENSE" || values[1][4] != -40.0 {
		t.Errorf("unexpected row %v", values[1])
	}
}

func TestClient_Export(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var updated gsheet.ValueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":clear"):
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &updated)
			if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
				t.Errorf("unexpected valueInputOption %q", r.URL.Query().Get("valueInputOption"))
			}
			w.Write([]byte(`{"updatedRange":"Transactions!A1:E2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	c := newWithService(svc, Config{SpreadsheetID: "abc"}, nil)

	ref, err := c.Export(context.Background(), []ports.Row{{Date: "01/05/24", Type: core.Income, Category: "Income", Amount: 100}})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "Transactions!A1:E2" {
		t.Errorf("unexpected ref %q", ref)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[0], ":clear") {
		t.Errorf("expected clear then update, got %v", paths)
	}
	if len(updated.Values) != 2 {
		t.Errorf("expected 2 rows sent, got %d", len(updated.Values))
	}
}
