package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/webhooks"
)

func newVerifyKeyCmd(opts *rootOptions) *cobra.Command {
	var publicKey string

	cmd := &cobra.Command{
		Use:   "verify-key [key]",
		Short: "Verify a signed license key",
		Long: `Verify a signed license key offline and print the result as JSON.

The key is taken from the argument, or LICENSE_KEY when omitted. Exits
non-zero when the key is not valid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			licenseCfg, err := opts.licenseConfig.Get()
			if err != nil {
				return err
			}
			key := cfg.LicenseKey
			if len(args) == 1 {
				key = args[0]
			}
			if key == "" {
				return errors.New("no license key given")
			}

			v := license.NewKeyVerifier(licenseCfg)
			var vopts []license.VerifyOption
			if publicKey != "" {
				vopts = append(vopts, license.WithPublicKey(publicKey))
			}
			res := v.Verify(strings.TrimSpace(key), vopts...)
			opts.logger.Debug().Str("code", string(res.Code)).Msg("verified license key")

			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%w: %s", errInvalid, res.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&publicKey, "public-key", "", "PEM or hex public key overriding the configured one")
	return cmd
}

func newVerifyFileCmd(opts *rootOptions) *cobra.Command {
	var (
		file       string
		licenseKey string
		publicKey  string
	)

	cmd := &cobra.Command{
		Use:   "verify-file",
		Short: "Verify a license file certificate",
		Long: `Verify a license file certificate and print the result as JSON.

Encrypted certificates need the license key, from --license-key or
LICENSE_KEY. Exits non-zero when the certificate is not valid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			licenseCfg, err := opts.licenseConfig.Get()
			if err != nil {
				return err
			}
			cert, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			if licenseKey == "" {
				licenseKey = cfg.LicenseKey
			}

			v := license.NewFileVerifier(licenseCfg)
			var vopts []license.VerifyOption
			if publicKey != "" {
				vopts = append(vopts, license.WithPublicKey(publicKey))
			}
			res := v.Verify(string(cert), licenseKey, vopts...)
			opts.logger.Debug().Str("code", string(res.Code)).Str("algorithm", res.Algorithm).Msg("verified license file")

			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%w: %s", errInvalid, res.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "License file path, - for stdin")
	cmd.Flags().StringVar(&licenseKey, "license-key", "", "License key used to decrypt encrypted certificates")
	cmd.Flags().StringVar(&publicKey, "public-key", "", "PEM or hex public key overriding the configured one")
	return cmd
}

type webhookOutput struct {
	Valid bool            `json:"valid"`
	Event *webhooks.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

func newVerifyWebhookCmd(opts *rootOptions) *cobra.Command {
	var (
		body      string
		header    string
		secret    string
		publicKey string
		tolerance time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify-webhook",
		Short: "Verify a webhook signature",
		Long: `Verify a webhook body against its signature header and print the
decoded event. Exits non-zero when the signature does not verify.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			licenseCfg, err := opts.licenseConfig.Get()
			if err != nil {
				return err
			}
			payload, err := readInput(cmd, body)
			if err != nil {
				return err
			}

			v := webhooks.NewVerifier(licenseCfg)
			v.Tolerance = tolerance
			if !cmd.Flags().Changed("tolerance") {
				v.Tolerance = time.Duration(cfg.WebhookTolerance) * time.Second
			}
			var wopts []webhooks.Option
			if secret != "" {
				wopts = append(wopts, webhooks.WithSecret(secret))
			}
			if publicKey != "" {
				wopts = append(wopts, webhooks.WithPublicKey(publicKey))
			}

			out := webhookOutput{Valid: v.Verify(string(payload), header, wopts...)}
			code := license.CodeInvalidSignature
			if out.Valid {
				code = license.CodeValid
				evt, err := webhooks.ParseEvent(payload)
				if err != nil {
					out.Error = err.Error()
				} else {
					out.Event = &evt
				}
			}

			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Valid {
				return fmt.Errorf("%w: %s", errInvalid, code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&body, "body", "b", "-", "Webhook body path, - for stdin")
	cmd.Flags().StringVar(&header, "signature", "", "Signature header value")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret overriding the configured one")
	cmd.Flags().StringVar(&publicKey, "public-key", "", "Ed25519 public key overriding the configured one")
	cmd.Flags().DurationVar(&tolerance, "tolerance", 0, "Maximum signature age, 0 disables the check")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}
