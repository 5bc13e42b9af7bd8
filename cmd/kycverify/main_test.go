package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consistentDocs = `[
	{"documentType": "aadhaar", "fields": {"name": "Priya Nair", "dateOfBirth": "1988-02-29", "idNumber": "2345 6789 0123", "address": "7 Marine Drive, Kochi"}, "rawText": "Government of India", "sourceConfidence": 91},
	{"documentType": "pan", "fields": {"name": "PRIYA NAIR", "dateOfBirth": "29/02/1988", "idNumber": "ABCDE1234F"}, "rawText": "Income Tax Department", "sourceConfidence": 89}
]`

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestApprovedWithFingerprint(t *testing.T) {
	code, stdout, stderr := runCLI(t, consistentDocs, "--fingerprint", "--now", "2026-10-18")

	require.Equal(t, exitApproved, code, stderr)
	var out struct {
		Fingerprint string `json:"fingerprint"`
		Verdict     struct {
			Approved bool `json:"approved"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.True(t, out.Verdict.Approved)
	assert.Len(t, out.Fingerprint, 64)
}

func TestFingerprintIsStable(t *testing.T) {
	_, first, _ := runCLI(t, consistentDocs, "--fingerprint", "--now", "2026-10-18")
	_, second, _ := runCLI(t, consistentDocs, "--fingerprint", "--now", "2026-10-18")

	assert.Equal(t, first, second)
}

func TestNotApproved(t *testing.T) {
	code, _, _ := runCLI(t, `[{"documentType": "pan", "fields": {"name": "A B"}, "sourceConfidence": 40}]`, "--now", "2026-10-18")

	assert.Equal(t, exitNotApproved, code)
}

func TestMalformedInput(t *testing.T) {
	code, _, stderr := runCLI(t, `[{"documentType": "pan", "sourceConfidence": "high"}]`)

	assert.Equal(t, exitBadInput, code)
	assert.Contains(t, stderr, "input malformed")
}

func TestPolicyFileAndInputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "docs.json")
	policy := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(input, []byte(consistentDocs), 0o600))
	require.NoError(t, os.WriteFile(policy, []byte("verification:\n  min_final_confidence: 99.5\n"), 0o600))

	code, _, stderr := runCLI(t, "", "--input", input, "--policy", policy, "--now", "2026-10-18")

	assert.Equal(t, exitNotApproved, code, stderr)
}

func TestBadFlags(t *testing.T) {
	code, _, _ := runCLI(t, "", "--now", "18/10/2026")
	assert.Equal(t, exitBadInput, code)

	code, _, _ = runCLI(t, "", "stray")
	assert.Equal(t, exitBadInput, code)
}
