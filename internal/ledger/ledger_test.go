package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.Local)

func newJSONLedger(t *testing.T) *JSONLedger {
	t.Helper()
	return NewJSONLedger(filepath.Join(t.TempDir(), "data", "applications.json"))
}

func newSQLiteLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func backends(t *testing.T) map[string]Ledger {
	return map[string]Ledger{
		"json":   newJSONLedger(t),
		"sqlite": newSQLiteLedger(t),
	}
}

func TestLedger_DuplicateByURLAndLabel(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entry := NewEntry(model.CategoryApply, "Go Dev @ Acme", "https://acme.example/jobs/1", model.ActionApplied, nil, "", fixedNow)
			for i := 0; i < 2; i++ {
				if err := l.Append(entry); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			for _, key := range []string{"https://acme.example/jobs/1", "Go Dev @ Acme"} {
				dup, err := l.IsDuplicate(key)
				if err != nil {
					t.Fatalf("IsDuplicate(%q): %v", key, err)
				}
				if !dup {
					t.Errorf("IsDuplicate(%q) = false, want true", key)
				}
			}

			for _, key := range []string{"", "https://acme.example/jobs/2", "go dev @ acme"} {
				if dup, _ := l.IsDuplicate(key); dup {
					t.Errorf("IsDuplicate(%q) = true, want false", key)
				}
			}

			entries, err := l.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(entries) != 2 {
				t.Errorf("entries = %d, want 2", len(entries))
			}
		})
	}
}

func TestLedger_EmptyURLEntryNeverMatchesEmptyKey(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := l.Append(NewEntry(model.CategoryProspect, "Acme", "", model.ActionEmailed, []string{"hr@acme.example"}, "", fixedNow)); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if dup, _ := l.IsDuplicate(""); dup {
				t.Error("empty key must never be a duplicate")
			}
			if dup, _ := l.IsDuplicate("Acme"); !dup {
				t.Error("company name should match the target")
			}
		})
	}
}

func TestLedger_LoadPreservesFields(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := NewEntry(model.CategoryEmail, "SRE @ Globex", "https://globex.example/sre", model.ActionEmailed,
				[]string{"hr@globex.example", "ceo@globex.example"}, "sent both", fixedNow)
			if err := l.Append(want); err != nil {
				t.Fatalf("Append: %v", err)
			}
			got, err := l.Load()
			if err != nil || len(got) != 1 {
				t.Fatalf("Load = %v, %v", got, err)
			}
			if got[0].Target != want.Target || got[0].ActionTaken != want.ActionTaken || got[0].Date != want.Date ||
				strings.Join(got[0].EmailsSentTo, ",") != "hr@globex.example,ceo@globex.example" || got[0].Notes != "sent both" {
				t.Errorf("got %+v, want %+v", got[0], want)
			}
		})
	}
}

func TestJSONLedger_MissingFileIsEmpty(t *testing.T) {
	l := newJSONLedger(t)
	entries, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
	if dup, err := l.IsDuplicate("anything"); err != nil || dup {
		t.Errorf("IsDuplicate = %v, %v", dup, err)
	}
}

func TestJSONLedger_WireFormat(t *testing.T) {
	l := newJSONLedger(t)
	if err := l.Append(NewEntry(model.CategoryApply, "Dev <Remote> @ Acme", "https://x.example/1", model.ActionDryRun, nil, "", fixedNow)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("document is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("entries = %d", len(raw))
	}
	e := raw[0]
	for _, key := range []string{"type", "target", "url", "date", "action_taken", "emails_sent_to", "notes"} {
		if _, ok := e[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if sent, ok := e["emails_sent_to"].([]any); !ok || len(sent) != 0 {
		t.Errorf("emails_sent_to = %#v, want empty array", e["emails_sent_to"])
	}
	if e["date"] != "2025-03-14T09:26:53.589793" {
		t.Errorf("date = %v", e["date"])
	}
	if e["type"] != "job_apply" || e["action_taken"] != "dry_run" {
		t.Errorf("type/action = %v/%v", e["type"], e["action_taken"])
	}
	if !strings.Contains(string(data), "<Remote>") {
		t.Error("HTML characters should not be escaped")
	}
}

func TestJSONLedger_CorruptFileIsNotOverwritten(t *testing.T) {
	l := newJSONLedger(t)
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(NewEntry(model.CategoryApply, "x", "y", model.ActionApplied, nil, "", fixedNow)); err == nil {
		t.Fatal("expected append to fail on a corrupt ledger")
	}
	data, _ := os.ReadFile(l.Path())
	if string(data) != "{not json" {
		t.Errorf("corrupt ledger was modified: %q", data)
	}
}

func TestJSONLedger_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.json")
	a, b := NewJSONLedger(path), NewJSONLedger(path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		l := a
		if i%2 == 1 {
			l = b
		}
		go func(l *JSONLedger, i int) {
			defer wg.Done()
			if err := l.Append(NewEntry(model.CategoryEmail, "t", "u", model.ActionEmailed, nil, "", fixedNow)); err != nil {
				t.Errorf("Append %d: %v", i, err)
			}
		}(l, i)
	}
	wg.Wait()

	entries, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("entries = %d, want 10", len(entries))
	}
}

func TestSQLiteLedger_ImportJSON(t *testing.T) {
	src := newJSONLedger(t)
	for _, url := range []string{"https://a.example", "https://b.example"} {
		if err := src.Append(NewEntry(model.CategoryApply, "t", url, model.ActionApplied, nil, "", fixedNow)); err != nil {
			t.Fatal(err)
		}
	}

	dst := newSQLiteLedger(t)
	n, err := dst.ImportJSON(src)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}
	if dup, _ := dst.IsDuplicate("https://b.example"); !dup {
		t.Error("imported URL should be a duplicate")
	}
}

func TestEntry_Time(t *testing.T) {
	e := NewEntry(model.CategoryApply, "t", "u", model.ActionApplied, nil, "", fixedNow)
	got, err := e.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !got.Equal(fixedNow.Truncate(time.Microsecond)) {
		t.Errorf("Time = %v, want %v", got, fixedNow)
	}

	legacy := Entry{Date: "2024-11-02T18:00:00"}
	if _, err := legacy.Time(); err != nil {
		t.Errorf("legacy date: %v", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, _, err := Open("postgres", "x"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
