// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/bootsig"
	"github.com/bureau-foundation/suauth/lib/config"
	"github.com/bureau-foundation/suauth/lib/sealed"
	"github.com/bureau-foundation/suauth/lib/secret"
)

func bootCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "boot",
		Summary: "Sign and verify boot images",
		Subcommands: []*cli.Command{
			bootSizeCommand(env),
			bootSignCommand(env),
			bootVerifyCommand(env),
			bootSealKeyCommand(env),
		},
	}
}

// fingerprint is the BLAKE3-256 digest of data in hex.
func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func bootSizeCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "size",
		Summary: "Print the signable size of a boot image",
		Usage:   "suauth boot size <image>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth boot size <image>")
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			header, err := bootsig.ParseHeader(image)
			if err != nil {
				return err
			}
			size, err := header.SignableSize()
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%d (%s, header v%d, page size %d)\n",
				size, humanize.IBytes(uint64(size)), header.Version, header.PageSize)
			return nil
		},
	}
}

// signingPaths are the key material locations for "boot sign": flags
// first, then the configuration file.
type signingPaths struct {
	configPath  string
	key         string
	certificate string
	identity    string
}

func (p *signingPaths) resolve() error {
	if p.key != "" && p.certificate != "" {
		return nil
	}
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return fmt.Errorf("--key and --cert not given and no configuration: %w", err)
	}
	p.fillFrom(cfg)
	if p.key == "" || p.certificate == "" {
		return errors.New("no signing key configured: pass --key and --cert or set paths.signing_key and paths.signing_certificate")
	}
	return nil
}

func (p *signingPaths) fillFrom(cfg *config.Config) {
	if p.key == "" {
		p.key = cfg.Paths.SigningKey
	}
	if p.certificate == "" {
		p.certificate = cfg.Paths.SigningCertificate
	}
	if p.identity == "" {
		p.identity = cfg.Paths.AgeIdentity
	}
}

// loadSigner reads the private key at keyPath, decrypting it with the
// age identity when it is sealed.
func loadSigner(keyPath, identityPath string) (crypto.Signer, error) {
	key, err := secret.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	if !sealed.IsSealed(key.Bytes()) {
		return bootsig.ParsePrivateKey(key.Bytes())
	}
	if identityPath == "" {
		return nil, fmt.Errorf("%s is age-encrypted: pass --identity or set paths.age_identity", keyPath)
	}
	identity, err := secret.ReadFile(identityPath)
	if err != nil {
		return nil, err
	}
	defer identity.Close()

	plaintext, err := sealed.Open(key.Bytes(), identity)
	if err != nil {
		return nil, err
	}
	defer plaintext.Close()
	return bootsig.ParsePrivateKey(plaintext.Bytes())
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bootsig.ParseCertificate(data)
}

func bootSignCommand(env *Env) *cli.Command {
	var (
		paths  signingPaths
		target string
		output string
	)
	return &cli.Command{
		Name:    "sign",
		Summary: "Append a signature footer to a boot image",
		Description: `Sign a boot image. The image is truncated to its signable size, so an
existing footer is replaced. The key may be PEM or DER; an age-encrypted
key (see "suauth boot seal-key") is decrypted with --identity.`,
		Usage: "suauth boot sign <image> [flags]",
		Examples: []cli.Example{
			{Description: "Sign in place with the configured key", Command: "suauth boot sign boot.img"},
			{Description: "Sign a recovery image to a new file", Command: "suauth boot sign recovery.img --target /recovery --key key.pk8 --cert cert.pem -o signed.img"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sign", pflag.ContinueOnError)
			configFlag(flagSet, &paths.configPath)
			flagSet.StringVar(&paths.key, "key", "", "private key (PEM, DER PKCS#8, or age-encrypted)")
			flagSet.StringVar(&paths.certificate, "cert", "", "X.509 certificate matching the key")
			flagSet.StringVar(&paths.identity, "identity", "", "age identity file for an encrypted key")
			flagSet.StringVar(&target, "target", bootsig.DefaultTarget, "partition name bound into the signature")
			flagSet.StringVarP(&output, "output", "o", "", "write the signed image here instead of in place")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth boot sign <image>")
			}
			if err := paths.resolve(); err != nil {
				return err
			}
			signer, err := loadSigner(paths.key, paths.identity)
			if err != nil {
				return err
			}
			certificate, err := loadCertificate(paths.certificate)
			if err != nil {
				return err
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			signed, err := bootsig.Sign(image, signer, certificate, bootsig.SignOptions{
				Target: target,
				Logger: env.Logger,
			})
			if err != nil {
				return err
			}

			destination := output
			if destination == "" {
				destination = args[0]
			}
			if err := writeFileAtomic(destination, signed, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", destination, err)
			}
			fmt.Fprintf(env.Stdout, "signed %s (%s, target %s)\nblake3 %s\n",
				destination, humanize.IBytes(uint64(len(signed))), target, fingerprint(signed))
			return nil
		},
	}
}

type verifyResult struct {
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
	SignableSize int    `json:"signable_size,omitempty"`
	Algorithm    string `json:"algorithm,omitempty"`
	Target       string `json:"target,omitempty"`
	Signer       string `json:"signer,omitempty"`
	Blake3       string `json:"blake3"`
}

func bootVerifyCommand(env *Env) *cli.Command {
	var (
		certificatePath string
		output          cli.JSONOutput
	)
	return &cli.Command{
		Name:    "verify",
		Summary: "Check the signature footer of a boot image",
		Description: `Verify a boot image signature against the certificate embedded in its
footer, or against --cert. Exits 1 when the signature is not valid.`,
		Usage: "suauth boot verify <image> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.StringVar(&certificatePath, "cert", "", "trusted certificate (default: the embedded one)")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth boot verify <image>")
			}
			var trusted *x509.Certificate
			if certificatePath != "" {
				var err error
				if trusted, err = loadCertificate(certificatePath); err != nil {
					return err
				}
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			verification, verifyErr := bootsig.Inspect(image, trusted)
			result := verifyResult{
				Valid:        verification.Valid,
				SignableSize: verification.SignableSize,
				Blake3:       fingerprint(image),
			}
			if verifyErr != nil {
				result.Error = verifyErr.Error()
			}
			if verification.Footer != nil {
				result.Algorithm = verification.Footer.AlgorithmName()
				result.Target = verification.Footer.Target
			}
			if verification.Signer != nil {
				result.Signer = verification.Signer.Subject.String()
			}

			if done, err := output.EmitJSON(env.Stdout, result); done {
				if err != nil {
					return err
				}
			} else {
				printVerification(env, result)
			}
			if !result.Valid {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func printVerification(env *Env, result verifyResult) {
	if result.Valid {
		fmt.Fprintln(env.Stdout, cli.Verdict(true, "Signature is VALID"))
	} else {
		fmt.Fprintln(env.Stdout, cli.Verdict(false, "Signature is INVALID"))
	}
	if result.Error != "" {
		fmt.Fprintf(env.Stdout, "  reason:    %s\n", result.Error)
	}
	if result.Algorithm != "" {
		fmt.Fprintf(env.Stdout, "  algorithm: %s\n", result.Algorithm)
		fmt.Fprintf(env.Stdout, "  target:    %s\n", result.Target)
	}
	if result.Signer != "" {
		fmt.Fprintf(env.Stdout, "  signer:    %s\n", result.Signer)
	}
	if result.SignableSize > 0 {
		fmt.Fprintf(env.Stdout, "  signed:    %s\n", humanize.IBytes(uint64(result.SignableSize)))
	}
	fmt.Fprintf(env.Stdout, "  blake3:    %s\n", result.Blake3)
}

func bootSealKeyCommand(env *Env) *cli.Command {
	var (
		recipients  []string
		newIdentity string
		output      string
	)
	return &cli.Command{
		Name:    "seal-key",
		Summary: "Encrypt a signing key with age",
		Description: `Encrypt a boot signing key to one or more age recipients so it can be
stored next to the daemon. --new-identity generates an identity file and
adds its public key to the recipients.`,
		Usage: "suauth boot seal-key <key> [flags]",
		Examples: []cli.Example{
			{Description: "Seal to a fresh identity", Command: "suauth boot seal-key key.pk8 --new-identity identity.txt -o key.pk8.age"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal-key", pflag.ContinueOnError)
			flagSet.StringArrayVarP(&recipients, "recipient", "r", nil, "age recipient (age1...), repeatable")
			flagSet.StringVar(&newIdentity, "new-identity", "", "generate an identity file here and seal to it")
			flagSet.StringVarP(&output, "output", "o", "", "output path (default: <key>.age)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth boot seal-key <key>")
			}
			for _, recipient := range recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return err
				}
			}

			key, err := secret.ReadFile(args[0])
			if err != nil {
				return err
			}
			defer key.Close()
			if _, err := bootsig.ParsePrivateKey(key.Bytes()); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if newIdentity != "" {
				keypair, err := sealed.GenerateKeypair()
				if err != nil {
					return err
				}
				defer keypair.Close()
				identityFile := keypair.IdentityFile(env.Clock.Now().UTC().Format(time.RFC3339))
				err = os.WriteFile(newIdentity, identityFile, 0o600)
				secret.Zero(identityFile)
				if err != nil {
					return fmt.Errorf("writing identity: %w", err)
				}
				recipients = append(recipients, keypair.PublicKey)
				fmt.Fprintf(env.Stdout, "identity written to %s (public key %s)\n", newIdentity, keypair.PublicKey)
			}
			if len(recipients) == 0 {
				return errors.New("no recipients: pass --recipient or --new-identity")
			}

			ciphertext, err := sealed.Seal(key.Bytes(), recipients)
			if err != nil {
				return err
			}
			destination := output
			if destination == "" {
				destination = args[0] + ".age"
			}
			if err := writeFileAtomic(destination, ciphertext, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", destination, err)
			}
			fmt.Fprintf(env.Stdout, "sealed key written to %s\n", destination)
			return nil
		},
	}
}
