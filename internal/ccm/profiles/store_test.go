package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/example/ccm/internal/ccm/backup"
	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/paths"
	"github.com/example/ccm/internal/ccm/storage"
)

type fixture struct {
	fs      afero.Fs
	layout  paths.Layout
	store   *Store
	pointer *Pointer
	mirror  *Mirror
	backups *backup.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := paths.Layout{ConfigDir: "/cfg", SettingsPath: "/home/.claude/settings.json"}
	stor := storage.New(fs)
	backups := backup.New(stor, layout.BackupDir(), nil)
	backups.SetNow(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })
	return &fixture{
		fs:      fs,
		layout:  layout,
		store:   NewStore(stor, layout, backups, nil),
		pointer: NewPointer(stor, layout.CurrentPath()),
		mirror:  NewMirror(stor, layout.SettingsPath, backups, nil),
		backups: backups,
	}
}

func (f *fixture) write(t *testing.T, path, body string) {
	t.Helper()
	if err := afero.WriteFile(f.fs, path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func validDoc(url string) Document {
	return NewDocument(map[string]string{KeyBaseURL: url, KeyAuthToken: "tok"})
}

func TestStore_CreateLoadList(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"zeta", "alpha"} {
		if err := f.store.Create(name, validDoc("https://"+name)); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	f.write(t, filepath.Join(f.layout.ProfilesDir(), ".hidden.json"), `{"env":{}}`)
	f.write(t, filepath.Join(f.layout.ProfilesDir(), "notes.txt"), "x")

	names, err := f.store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.Join(names, ",") != "alpha,zeta" {
		t.Errorf("List = %v", names)
	}

	doc, err := f.store.Load("alpha")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Get(KeyBaseURL) != "https://alpha" {
		t.Errorf("base url = %q", doc.Get(KeyBaseURL))
	}
}

func TestStore_ListEmptyWithoutDirectory(t *testing.T) {
	f := newFixture(t)
	names, err := f.store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List = %v", names)
	}
}

func TestStore_CreateErrors(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Create("dup", validDoc("https://a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.store.Create("dup", validDoc("https://b")); !errors.Is(err, domain.ErrProfileAlreadyExists) {
		t.Errorf("expected ErrProfileAlreadyExists, got %v", err)
	}
	if err := f.store.Create("bad/name", validDoc("https://a")); !errors.Is(err, domain.ErrProfileNameInvalidChars) {
		t.Errorf("expected ErrProfileNameInvalidChars, got %v", err)
	}
	if err := f.store.Create("CON", validDoc("https://a")); !errors.Is(err, domain.ErrProfileNameReserved) {
		t.Errorf("expected ErrProfileNameReserved, got %v", err)
	}
	if err := f.store.Create("empty", NewDocument(nil)); !errors.Is(err, domain.ErrMissingRequiredKey) {
		t.Errorf("expected ErrMissingRequiredKey, got %v", err)
	}
}

func TestStore_LoadAndLookupMissing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.Load("ghost"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("Load: expected ErrProfileNotFound, got %v", err)
	}
	doc, found, err := f.store.Lookup("ghost")
	if err != nil || found {
		t.Fatalf("Lookup = (%v, %v, %v), want not found", doc, found, err)
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.layout.ProfilePath("broken"), `{"env": [}`)
	_, err := f.store.Load("broken")
	if !errors.Is(err, domain.ErrMalformedProfile) {
		t.Fatalf("expected ErrMalformedProfile, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the profile: %v", err)
	}
	if _, _, err := f.store.Lookup("broken"); !errors.Is(err, domain.ErrMalformedProfile) {
		t.Errorf("Lookup should surface malformed content, got %v", err)
	}
}

func TestStore_SaveBacksUpPreviousContent(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Create("p", validDoc("https://one")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := afero.ReadFile(f.fs, f.layout.ProfilePath("p"))
	if err := f.store.Save("p", validDoc("https://two")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	backupPath := filepath.Join(f.layout.BackupDir(), backup.Hash(before)+".json")
	got, err := afero.ReadFile(f.fs, backupPath)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(got) != string(before) {
		t.Errorf("backup content = %q", got)
	}
}

func TestStore_SaveRawKeepsBytes(t *testing.T) {
	f := newFixture(t)
	raw := "{\"env\":{\"ANTHROPIC_BASE_URL\":\"u\",\"ANTHROPIC_AUTH_TOKEN\":\"t\"},\"x\":true}"
	if err := f.store.SaveRaw("p", []byte(raw)); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	got, _ := afero.ReadFile(f.fs, f.layout.ProfilePath("p"))
	if string(got) != raw {
		t.Errorf("stored = %q", got)
	}
	if err := f.store.SaveRaw("p", []byte("nope")); !errors.Is(err, domain.ErrMalformedProfile) {
		t.Errorf("expected ErrMalformedProfile, got %v", err)
	}
}

func TestStore_DeleteAndRename(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Create("a", validDoc("https://a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.store.Create("b", validDoc("https://b")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.store.Rename("a", "b"); !errors.Is(err, domain.ErrProfileAlreadyExists) {
		t.Errorf("rename onto existing: got %v", err)
	}
	if err := f.store.Rename("a", "c"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if ok, _ := f.store.Exists("a"); ok {
		t.Error("old name still exists")
	}
	if err := f.store.Delete("c"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.store.Delete("c"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if err := f.store.Rename("ghost", "x"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("rename missing: got %v", err)
	}
}

func TestStore_SetAndUnsetEnv(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.layout.ProfilePath("p"), `{"keep": 1, "env": {"ANTHROPIC_BASE_URL": "u", "ANTHROPIC_AUTH_TOKEN": "t"}}`)

	if err := f.store.SetEnv("p", KeyModel, "opus"); err != nil {
		t.Fatalf("SetEnv: %v", err)
	}
	doc, err := f.store.Load("p")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Get(KeyModel) != "opus" {
		t.Errorf("model = %q", doc.Get(KeyModel))
	}
	if _, ok := doc.Extra["keep"]; !ok {
		t.Error("other members must survive SetEnv")
	}

	if err := f.store.UnsetEnv("p", KeyModel); err != nil {
		t.Fatalf("UnsetEnv: %v", err)
	}
	doc, _ = f.store.Load("p")
	if _, ok := doc.Env[KeyModel]; ok {
		t.Error("model should be removed")
	}
	if err := f.store.UnsetEnv("p", KeyAuthToken); !errors.Is(err, domain.ErrMissingRequiredKey) {
		t.Errorf("unset required key: got %v", err)
	}
	if err := f.store.SetEnv("p", "BAD.KEY", "x"); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestPointer(t *testing.T) {
	f := newFixture(t)
	if _, set, err := f.pointer.Get(); err != nil || set {
		t.Fatalf("Get on empty = (%v, %v)", set, err)
	}
	if err := f.pointer.Set("work"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _ := afero.ReadFile(f.fs, f.layout.CurrentPath())
	if string(raw) != "work\n" {
		t.Errorf("pointer file = %q", raw)
	}
	name, set, err := f.pointer.Get()
	if err != nil || !set || name != "work" {
		t.Fatalf("Get = (%q, %v, %v)", name, set, err)
	}

	f.write(t, f.layout.CurrentPath(), "  \n")
	if _, set, _ := f.pointer.Get(); set {
		t.Error("blank pointer should read as unset")
	}
}

func TestMirror_ReadWrite(t *testing.T) {
	f := newFixture(t)
	if _, _, found, err := f.mirror.Read(); err != nil || found {
		t.Fatalf("Read missing = (%v, %v)", found, err)
	}

	if err := f.mirror.Write(validDoc("https://one")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, raw, found, err := f.mirror.Read()
	if err != nil || !found {
		t.Fatalf("Read = (%v, %v)", found, err)
	}
	if doc.Get(KeyBaseURL) != "https://one" {
		t.Errorf("base url = %q", doc.Get(KeyBaseURL))
	}
	want, _ := validDoc("https://one").Marshal()
	if string(raw) != string(want) {
		t.Errorf("raw = %q, want canonical %q", raw, want)
	}

	if err := f.mirror.Write(validDoc("https://two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ok, _ := afero.Exists(f.fs, filepath.Join(f.layout.BackupDir(), backup.Hash(raw)+".json")); !ok {
		t.Error("previous settings should be backed up")
	}
}

func TestMirror_RefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.json")
	link := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(target, []byte(`{"env":{}}`), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	m := NewMirror(storage.New(afero.NewOsFs()), link, nil, nil)
	if _, _, _, err := m.Read(); err == nil {
		t.Fatal("expected symlink refusal")
	}
}
