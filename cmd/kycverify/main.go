// kycverify evaluates a JSON array of extracted identity documents offline
// and prints the verdict.
//
// Exit status: 0 approved, 1 not approved, 2 malformed input or usage error.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

const (
	exitApproved    = 0
	exitNotApproved = 1
	exitBadInput    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type output struct {
	Fingerprint string                `json:"fingerprint,omitempty"`
	Verdict     *verification.Verdict `json:"verdict"`
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var inputPath, policyPath, now string
	var withFingerprint bool

	flagSet := pflag.NewFlagSet("kycverify", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&inputPath, "input", "i", "-", "JSON file with the document array, - for stdin")
	flagSet.StringVarP(&policyPath, "policy", "p", "", "config.yaml whose verification section overrides the default policy")
	flagSet.BoolVar(&withFingerprint, "fingerprint", false, "include the BLAKE3 verdict fingerprint")
	flagSet.StringVar(&now, "now", "", "evaluate age rules as of this date (2006-01-02)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitApproved
		}
		return exitBadInput
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		fmt.Fprintf(stderr, "error: unexpected argument: %s\n", extra[0])
		return exitBadInput
	}

	engine, err := buildEngine(policyPath, now)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitBadInput
	}

	docs, err := readDocuments(inputPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitBadInput
	}

	verdict, err := engine.Evaluate(docs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitBadInput
	}

	out := output{Verdict: verdict}
	if withFingerprint {
		if out.Fingerprint, err = verification.Fingerprint(verdict); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitBadInput
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitBadInput
	}

	if !verdict.Approved {
		return exitNotApproved
	}
	return exitApproved
}

func buildEngine(policyPath, now string) (*verification.Engine, error) {
	var opts []verification.Option
	if policyPath != "" {
		cfg, err := models.LoadConfig(policyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, verification.WithPolicy(cfg.Verification))
	}
	if now != "" {
		t, err := time.Parse(time.DateOnly, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now %q: %w", now, err)
		}
		opts = append(opts, verification.WithClock(verification.FixedClock(t)))
	}
	return verification.NewEngine(opts...)
}

func readDocuments(path string, stdin io.Reader) ([]verification.ExtractedDocument, error) {
	if path == "-" {
		return verification.DecodeDocuments(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return verification.DecodeDocuments(f)
}
