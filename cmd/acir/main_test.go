package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/acir-runtime/internal/stublib"
)

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestProveCommand(t *testing.T) {
	dir := t.TempDir()
	lib := writeFixture(t, dir, "lib.wasm", stublib.Build())
	circuit := writeFixture(t, dir, "circuit", stublib.ValidCS())
	witness := writeFixture(t, dir, "witness", []byte("witness"))
	out := filepath.Join(dir, "proof")

	root := newRootCmd()
	root.SetArgs([]string{"--library", lib, "prove", "-c", circuit, "-w", witness, "-o", out})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	proof, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read proof: %v", err)
	}
	if !bytes.Equal(proof, stublib.ProofPayload) {
		t.Errorf("proof = %q", proof)
	}
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	lib := writeFixture(t, dir, "lib.wasm", stublib.Build())
	vk := writeFixture(t, dir, "vk", stublib.VKPayload)

	t.Run("valid", func(t *testing.T) {
		proof := writeFixture(t, dir, "proof", stublib.ProofPayload)
		root := newRootCmd()
		root.SetArgs([]string{"--library", lib, "verify", "-k", vk, "-p", proof})
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	})

	// the invalid verdict comes back as the sentinel through Execute, so
	// the session's deferred teardown runs before the process decides its
	// exit status
	t.Run("invalid", func(t *testing.T) {
		proof := writeFixture(t, dir, "bad-proof", stublib.InvalidProof())
		root := newRootCmd()
		root.SetArgs([]string{"--library", lib, "verify", "-k", vk, "-p", proof})
		err := root.Execute()
		if !errors.Is(err, errInvalidProof) {
			t.Fatalf("Execute = %v, want the invalid-proof sentinel", err)
		}
	})
}
