// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/bootsig"
	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/policy"
	"github.com/bureau-foundation/suauth/lib/sealed"
	"github.com/bureau-foundation/suauth/lib/sulog"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	dir        string
	configPath string
	stdout     *bytes.Buffer
	env        *Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	packagesList := filepath.Join(dir, "packages.list")
	if err := os.WriteFile(packagesList, []byte("com.termux 10123 0 /data/user/0/com.termux default 3003\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout := &bytes.Buffer{}
	h := &harness{
		dir:    dir,
		stdout: stdout,
		env:    &Env{Context: context.Background(), Stdout: stdout, Clock: clock.Fake(testEpoch)},
	}
	h.configPath = h.writeConfig(t, "suauth.yaml", "")
	return h
}

// writeConfig writes a config file rooted at the harness directory.
// extraPaths is appended to the paths section.
func (h *harness) writeConfig(t *testing.T, name, extraPaths string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	text := fmt.Sprintf(`paths:
  root: %s
  packages_list: %s
%smanager:
  package: io.example.manager
log:
  time_zone: UTC
`, h.dir, filepath.Join(h.dir, "packages.list"), extraPaths)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes one suauth command line and returns its stdout.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.stdout.Reset()
	root := Root(h.env)
	root.HelpOutput = &bytes.Buffer{}
	err := root.Execute(args)
	return h.stdout.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("suauth %s: %v", strings.Join(args, " "), err)
	}
	return output
}

func TestPolicyGrantListRevoke(t *testing.T) {
	h := newHarness(t)

	output := h.mustRun(t, "policy", "grant", "10123", "--minutes", "60", "--no-notify", "--config", h.configPath)
	if !strings.Contains(output, "com.termux (10123)") || !strings.Contains(output, "from now") {
		t.Fatalf("grant output = %q", output)
	}

	output = h.mustRun(t, "policy", "list", "--json", "--config", h.configPath)
	var policies []policy.Policy
	if err := json.Unmarshal([]byte(output), &policies); err != nil {
		t.Fatalf("decoding policy list: %v\n%s", err, output)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %+v, want one", policies)
	}
	got := policies[0]
	if got.Decision != policy.Allow || got.Notification || !got.Logging || got.Until != testEpoch.Add(time.Hour).Unix() {
		t.Fatalf("policy = %+v", got)
	}

	output = h.mustRun(t, "policy", "list", "--config", h.configPath)
	if !strings.Contains(output, "com.termux") || !strings.Contains(output, "allow") {
		t.Fatalf("policy table = %q", output)
	}

	h.mustRun(t, "policy", "deny", "10123", "--config", h.configPath)
	output = h.mustRun(t, "policy", "list", "--config", h.configPath)
	if !strings.Contains(output, "deny") || !strings.Contains(output, "never") {
		t.Fatalf("policy table after deny = %q", output)
	}

	output = h.mustRun(t, "policy", "revoke", "com.termux", "--config", h.configPath)
	if !strings.Contains(output, "revoked 1 policy") {
		t.Fatalf("revoke output = %q", output)
	}
	output = h.mustRun(t, "policy", "list", "--json", "--config", h.configPath)
	if strings.TrimSpace(output) != "[]" {
		t.Fatalf("policy list after revoke = %q", output)
	}
}

func TestPolicyGrantOwnerManagedUsesAppID(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "settings", "set", "multiuser_mode", "owner_managed", "--config", h.configPath)

	output := h.mustRun(t, "policy", "grant", "1010123", "--config", h.configPath)
	if !strings.Contains(output, "com.termux (10123)") {
		t.Fatalf("grant output = %q", output)
	}
	output = h.mustRun(t, "policy", "list", "--json", "--config", h.configPath)
	var policies []policy.Policy
	if err := json.Unmarshal([]byte(output), &policies); err != nil {
		t.Fatalf("decoding policy list: %v\n%s", err, output)
	}
	if len(policies) != 1 || policies[0].UID != 10123 {
		t.Fatalf("policies = %+v, want one filed under app id 10123", policies)
	}

	h.mustRun(t, "policy", "revoke", "1010123", "--config", h.configPath)
	output = h.mustRun(t, "policy", "list", "--json", "--config", h.configPath)
	if strings.TrimSpace(output) != "[]" {
		t.Fatalf("policy list after revoke = %q", output)
	}
}

func TestPolicyGrantUnknownUID(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "policy", "grant", "10999", "--config", h.configPath); err == nil {
		t.Fatal("granting an unknown uid succeeded")
	}
	if _, err := h.run(t, "policy", "grant", "termux", "--config", h.configPath); err == nil {
		t.Fatal("granting a non-numeric uid succeeded")
	}
}

func TestSettingsSetShowReset(t *testing.T) {
	h := newHarness(t)

	output := h.mustRun(t, "settings", "set", "su_auto_response", "deny", "--config", h.configPath)
	if strings.TrimSpace(output) != "su_auto_response = deny" {
		t.Fatalf("set output = %q", output)
	}
	if _, err := h.run(t, "settings", "set", "root_access", "everyone", "--config", h.configPath); err == nil {
		t.Fatal("set accepted an invalid root_access value")
	}
	h.mustRun(t, "settings", "set", "requester", "io.example.other", "--config", h.configPath)

	output = h.mustRun(t, "settings", "show", "--config", h.configPath)
	if !strings.Contains(output, "deny *") || !strings.Contains(output, "io.example.other") {
		t.Fatalf("show output = %q", output)
	}

	h.mustRun(t, "settings", "reset", "su_auto_response", "--config", h.configPath)
	h.mustRun(t, "settings", "reset", "requester", "--config", h.configPath)
	output = h.mustRun(t, "settings", "show", "--json", "--config", h.configPath)
	var settings map[string]any
	if err := json.Unmarshal([]byte(output), &settings); err != nil {
		t.Fatalf("decoding settings: %v", err)
	}
	if settings["su_auto_response"] != float64(0) || settings["requester"] != "io.example.manager" {
		t.Fatalf("settings after reset = %v", settings)
	}
}

func TestLogListAndClear(t *testing.T) {
	h := newHarness(t)

	stores, err := h.env.withDefaults().openStores(h.configPath)
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	err = stores.logs.Append(context.Background(), sulog.Entry{
		FromUID:     10123,
		FromPID:     4242,
		PackageName: "com.termux",
		AppName:     "Termux",
		Command:     "id -u",
		Granted:     true,
	})
	stores.Close()
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	output := h.mustRun(t, "log", "list", "--config", h.configPath)
	for _, want := range []string{"Mar 14, 2026", "09:00:00", "granted", "Termux (uid 10123, pid 4242)", "id -u"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %q:\n%s", want, output)
		}
	}

	h.mustRun(t, "log", "clear", "--config", h.configPath)
	output = h.mustRun(t, "log", "list", "--json", "--config", h.configPath)
	if strings.TrimSpace(output) != "[]" {
		t.Fatalf("log after clear = %q", output)
	}
}

// writeImage writes a minimal v0 boot image and returns its path.
func writeImage(t *testing.T, dir string) string {
	t.Helper()
	image := make([]byte, 2048)
	copy(image, bootsig.Magic)
	binary.LittleEndian.PutUint32(image[8:], 3000)
	binary.LittleEndian.PutUint32(image[36:], 2048)
	size, err := bootsig.SignableSize(image)
	if err != nil {
		t.Fatalf("SignableSize: %v", err)
	}
	for len(image) < size {
		image = append(image, byte(len(image)))
	}
	path := filepath.Join(dir, "boot.img")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeSigningKey writes a PKCS#8 PEM key and a matching certificate.
func writeSigningKey(t *testing.T, dir string) (keyPath, certificatePath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "suauth test"},
		NotBefore:    testEpoch.Add(-time.Hour),
		NotAfter:     testEpoch.Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	keyPath = filepath.Join(dir, "key.pem")
	certificatePath = filepath.Join(dir, "cert.pem")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(certificatePath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		t.Fatal(err)
	}
	return keyPath, certificatePath
}

func TestBootSignVerify(t *testing.T) {
	h := newHarness(t)
	image := writeImage(t, h.dir)
	keyPath, certificatePath := writeSigningKey(t, h.dir)
	signedPath := filepath.Join(h.dir, "signed.img")

	output := h.mustRun(t, "boot", "size", image)
	if !strings.HasPrefix(output, "6144 ") {
		t.Fatalf("size output = %q", output)
	}

	output = h.mustRun(t, "boot", "sign", image, "--key", keyPath, "--cert", certificatePath, "-o", signedPath)
	if !strings.Contains(output, "blake3 ") {
		t.Fatalf("sign output = %q", output)
	}

	output = h.mustRun(t, "boot", "verify", signedPath)
	for _, want := range []string{"Signature is VALID", "SHA256withECDSA", "/boot", "suauth test"} {
		if !strings.Contains(output, want) {
			t.Errorf("verify output missing %q:\n%s", want, output)
		}
	}

	// The unsigned original fails verification with exit code 1.
	output, err := h.run(t, "boot", "verify", image, "--json")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("verify unsigned err = %v, want exit code 1", err)
	}
	var result verifyResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decoding verify JSON: %v", err)
	}
	if result.Valid || result.Error == "" {
		t.Fatalf("verify unsigned = %+v", result)
	}

	data, err := os.ReadFile(signedPath)
	if err != nil {
		t.Fatal(err)
	}
	data[100] ^= 0xff
	if err := os.WriteFile(signedPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	output, err = h.run(t, "boot", "verify", signedPath)
	if !errors.As(err, &exitErr) || !strings.Contains(output, "Signature is INVALID") {
		t.Fatalf("verify tampered = %q, %v", output, err)
	}
}

func TestBootSealedKey(t *testing.T) {
	h := newHarness(t)
	image := writeImage(t, h.dir)
	keyPath, certificatePath := writeSigningKey(t, h.dir)
	identityPath := filepath.Join(h.dir, "identity.txt")

	output := h.mustRun(t, "boot", "seal-key", keyPath, "--new-identity", identityPath)
	if !strings.Contains(output, "age1") {
		t.Fatalf("seal-key output = %q", output)
	}
	sealedKey, err := os.ReadFile(keyPath + ".age")
	if err != nil {
		t.Fatal(err)
	}
	if !sealed.IsSealed(sealedKey) {
		t.Fatal("seal-key output is not an age file")
	}

	if _, err := h.run(t, "boot", "sign", image, "--key", keyPath+".age", "--cert", certificatePath); err == nil {
		t.Fatal("signing with a sealed key and no identity succeeded")
	}

	// The configuration supplies the key material when flags do not.
	configPath := h.writeConfig(t, "signing.yaml", fmt.Sprintf(
		"  signing_key: %s\n  signing_certificate: %s\n  age_identity: %s\n",
		keyPath+".age", certificatePath, identityPath))

	h.mustRun(t, "boot", "sign", image, "--config", configPath)
	output = h.mustRun(t, "boot", "verify", image, "--cert", certificatePath)
	if !strings.Contains(output, "Signature is VALID") {
		t.Fatalf("verify output = %q", output)
	}
}

func TestUnknownCommandSuggests(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "polcy")
	if err == nil || !strings.Contains(err.Error(), `"policy"`) {
		t.Fatalf("err = %v, want a policy suggestion", err)
	}
}
