package vocred

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
)

func writeTestPEM(t *testing.T, path string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		t.Fatal(err)
	}
	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.pem"))
	if !voerrors.IsPermissionDeniedErr(err) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestLoadValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadcproxy.pem")
	writeTestPEM(t, path)

	cred, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.Path() != path {
		t.Fatalf("Path() = %q, want %q", cred.Path(), path)
	}
}

func TestLoadNoHome(t *testing.T) {
	t.Setenv("HOME", "")
	_, err := Load("")
	if _, ok := err.(voerrors.InvalidArgument); !ok {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestLoadDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".ssl"), 0o700); err != nil {
		t.Fatal(err)
	}
	writeTestPEM(t, filepath.Join(home, defaultRelPath))

	cred, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(home, defaultRelPath)
	if cred.Path() != want {
		t.Fatalf("Path() = %q, want %q", cred.Path(), want)
	}
}
