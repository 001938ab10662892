package features

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func zipArchive(t *testing.T, files map[string][]byte) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("error creating %s: %v", name, err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("error writing %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("error closing archive: %v", err)
	}
	return buf.Bytes()
}

func TestIsProtocolFile(t *testing.T) {
	cases := map[string]bool{
		"PAMAP2_Dataset/Protocol/subject101.dat": true,
		"Protocol/subject109.dat":                true,
		"PAMAP2_Dataset/Optional/subject101.dat": false,
		"PAMAP2_Dataset/Protocol/readme.pdf":     false,
		"subject101.dat":                         false,
	}
	for name, expected := range cases {
		if isProtocolFile(name) != expected {
			t.Fatalf("isProtocolFile(%q) != %v", name, expected)
		}
	}
}

func TestExtractNestedProtocol(t *testing.T) {
	inner := zipArchive(t, map[string][]byte{
		"PAMAP2_Dataset/Protocol/subject101.dat": []byte("101"),
		"PAMAP2_Dataset/Protocol/subject102.dat": []byte("102"),
		"PAMAP2_Dataset/Optional/subject101.dat": []byte("optional"),
	})
	outer := zipArchive(t, map[string][]byte{
		"PAMAP2_Dataset.zip": inner,
		"readme.pdf":         []byte("readme"),
	})

	r, err := zip.NewReader(bytes.NewReader(outer), int64(len(outer)))
	if err != nil {
		t.Fatalf("error opening archive: %v", err)
	}

	dir := t.TempDir()
	n, err := extractProtocol(r, dir)
	if err != nil {
		t.Fatalf("error extracting archive: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 protocol files, got %d", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "subject101.dat"))
	if err != nil {
		t.Fatalf("error reading extracted file: %v", err)
	}
	if string(data) != "101" {
		t.Fatalf("expected the protocol copy of subject101.dat, got %q", data)
	}
}

func TestSubjectID(t *testing.T) {
	if id, err := subjectID("/data/Protocol/subject107.dat"); err != nil || id != 107 {
		t.Fatalf("expected subject 107, got %d (%v)", id, err)
	}
	if _, err := subjectID("/data/Protocol/subjectX.dat"); err == nil {
		t.Fatalf("expected an error for an invalid name")
	}
}
