package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCookieStoreRoundTrip(t *testing.T) {
	store := CookieStore{Path: filepath.Join(t.TempDir(), "nested", "cookies.json")}
	if store.Exists() {
		t.Fatal("store must not exist before save")
	}

	cookies := []Cookie{
		{Name: "session", Value: "abc123", Domain: ".alibaba.com", Path: "/", Expires: 1893456000, Secure: true, HTTPOnly: true},
		{Name: "pref", Value: "en"},
	}
	if err := store.Save(cookies); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists() {
		t.Fatal("store must exist after save")
	}

	info, err := os.Stat(store.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("cookie file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d cookies, want 2", len(loaded))
	}
	if loaded[0] != cookies[0] {
		t.Fatalf("round trip mismatch: %+v", loaded[0])
	}
}

func TestCookieStoreLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (CookieStore{Path: path}).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCookieStoreLoadMissingFile(t *testing.T) {
	store := CookieStore{Path: filepath.Join(t.TempDir(), "absent.json")}
	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
