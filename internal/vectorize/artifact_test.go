package vectorize

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSaveLoadModel_RoundTrip(t *testing.T) {
	m := fitTestModel(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(path, m); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if loaded.Fingerprint != m.Fingerprint {
		t.Errorf("fingerprint changed across save/load: %s vs %s", loaded.Fingerprint, m.Fingerprint)
	}
	if !reflect.DeepEqual(loaded.Terms, m.Terms) {
		t.Errorf("terms changed: %v vs %v", loaded.Terms, m.Terms)
	}
	if !reflect.DeepEqual(loaded.IDF, m.IDF) {
		t.Errorf("IDF table changed")
	}

	// A vectorizer over the loaded model must produce identical vectors.
	a, b := NewVectorizer(), NewVectorizer()
	a.Load(m)
	b.Load(loaded)
	tokens := []string{"contract", "breach"}
	va, _ := a.Vectorize(tokens)
	vb, _ := b.Vectorize(tokens)
	if !reflect.DeepEqual(va, vb) {
		t.Error("vectors differ across artifact round trip")
	}
}

func TestLoadModel_TamperedArtifact(t *testing.T) {
	m := fitTestModel(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(path, m); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"contract"`, `"contorted"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModel(path); err == nil {
		t.Error("expected fingerprint mismatch for tampered artifact")
	}
}

func TestLoadModel_Missing(t *testing.T) {
	if _, err := LoadModel(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing artifact")
	}
}
