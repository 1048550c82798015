package pdfpages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestIsPDF(t *testing.T) {
	cases := map[string]bool{
		"referral.pdf":  true,
		"referral.PDF":  true,
		"scan.png":      false,
		"notes.txt":     false,
		"pdf":           false,
		"dir/chart.pdf": true,
	}
	for path, want := range cases {
		if got := IsPDF(path); got != want {
			t.Errorf("IsPDF(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsImage(t *testing.T) {
	cases := map[string]bool{
		"scan.png":  true,
		"scan.jpg":  true,
		"scan.JPEG": true,
		"doc.pdf":   false,
		"doc.tiff":  false,
	}
	for path, want := range cases {
		if got := IsImage(path); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCollectImagesCopiesImages(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "images")

	var inputs []string
	for _, name := range []string{"a.png", "b.jpg"} {
		p := filepath.Join(srcDir, name)
		if err := os.WriteFile(p, []byte("img-"+name), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, p)
	}

	images, err := CollectImages(context.Background(), inputs, outDir)
	if err != nil {
		t.Fatalf("CollectImages() error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if filepath.Base(images[0]) != "page_0001.png" || filepath.Base(images[1]) != "page_0002.png" {
		t.Errorf("unexpected page names: %v", images)
	}

	data, err := os.ReadFile(images[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "img-a.png" {
		t.Errorf("first page content = %q", data)
	}
}

func TestCollectImagesRejectsUnsupported(t *testing.T) {
	srcDir := t.TempDir()
	p := filepath.Join(srcDir, "notes.txt")
	if err := os.WriteFile(p, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := CollectImages(context.Background(), []string{p}, filepath.Join(t.TempDir(), "images"))
	if err == nil {
		t.Fatal("expected error for unsupported document type")
	}
}
