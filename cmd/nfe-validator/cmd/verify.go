package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/nfe-validator/internal/signature"
	"github.com/rezonia/nfe-validator/internal/signature/trust"
	sigxml "github.com/rezonia/nfe-validator/internal/signature/xml"
)

var softFail bool

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify NF-e digital signatures",
	Long: `Verify the XMLDSig signature of NF-e documents.

Checks, in order:
  - the signature over infNFe (reference URI "#NFe<chave>")
  - the certificate chain as of the issue date (system roots plus --ca-file)
  - OCSP revocation, unless --skip-ocsp
  - the signer's e-CNPJ root against the emitter CNPJ (warning only)

ICP-Brasil roots are not in most system pools; pass them with --ca-file.

Examples:
  nfe-validator verify nota.xml
  nfe-validator verify --ca-file icp-brasil.pem notas/
  nfe-validator verify --skip-ocsp -f json nota.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("ca-file", "", "Extra trusted certificates (PEM bundle)")
	verifyCmd.Flags().Bool("skip-ocsp", false, "Skip OCSP revocation check")
	verifyCmd.Flags().BoolVar(&softFail, "soft-fail", false, "Accept certificates when the OCSP responder is unreachable")
}

// VerifyResult is one file's signature verdict
type VerifyResult struct {
	File string `json:"file"`
	signature.VerificationResult
}

func newVerifier() (*sigxml.XMLVerifier, error) {
	opts := []trust.TrustStoreOption{trust.WithCAFile(cfg.Trust.CAFile)}
	if cfg.Trust.SkipOCSP {
		opts = append(opts, trust.WithoutRevocation())
	}
	if softFail {
		opts = append(opts, trust.WithSoftFail())
	}

	ts, err := trust.NewTrustStore(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trust store: %w", err)
	}
	return sigxml.NewXMLVerifier(ts, sigxml.WithLogger(log)), nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to verify")
	}

	verifier, err := newVerifier()
	if err != nil {
		return err
	}

	results := verifyAll(cmd.Context(), verifier, files)

	if outputFormat == "json" {
		if err := outputJSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printVerifyResult(os.Stdout, r)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Valid {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("verification failed for %d of %d files", failed, len(results))
	}
	return nil
}

// verifyAll checks files concurrently, bounded by the batch worker count.
// Results follow the order of files.
func verifyAll(ctx context.Context, verifier *sigxml.XMLVerifier, files []string) []*VerifyResult {
	results := make([]*VerifyResult, len(files))

	var g errgroup.Group
	g.SetLimit(max(cfg.Batch.Workers, 1))
	for i, file := range files {
		g.Go(func() error {
			printVerbose("Verifying: %s\n", file)
			results[i] = verifyFile(ctx, verifier, file)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func verifyFile(ctx context.Context, verifier *sigxml.XMLVerifier, path string) *VerifyResult {
	out := &VerifyResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to read file: %v", err)}
		return out
	}

	vr, err := verifier.Verify(ctx, data)
	if vr != nil {
		out.VerificationResult = *vr
	}
	if err != nil && len(out.Errors) == 0 {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func printVerifyResult(w io.Writer, r *VerifyResult) {
	status := "VALID"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s %s: %s\n", mark(r.Valid), r.File, status)

	details := [][2]string{{"Chave", r.AccessKey}}
	if s := r.Signer; s != nil {
		details = append(details, [2]string{"Signer", s.Name}, [2]string{"CNPJ", s.CNPJ}, [2]string{"Issuer", s.Issuer})
	}
	if r.VerifiedAt != nil {
		details = append(details, [2]string{"Checked at", r.VerifiedAt.Format(time.RFC3339)})
	}
	for _, d := range details {
		if d[1] != "" {
			fmt.Fprintf(w, "  %-11s %s\n", d[0]+":", d[1])
		}
	}

	if r.SignatureFound {
		revocation := mark(r.NotRevoked)
		if cfg.Trust.SkipOCSP {
			revocation = "- (skipped)"
		}
		for _, c := range [][2]string{
			{"Signature", mark(r.SignatureValid)},
			{"Cert Chain", mark(r.CertChainValid)},
			{"Not Revoked", revocation},
			{"Emitter", mark(r.CNPJMatches)},
		} {
			fmt.Fprintf(w, "  %-12s %s\n", c[0]+":", c[1])
		}
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warn)
	}
}
