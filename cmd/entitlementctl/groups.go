package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/openstatushq/entitlements/internal/auth"
	"github.com/openstatushq/entitlements/internal/config"
	"github.com/openstatushq/entitlements/internal/models"
)

type mapGroupsOutput struct {
	Groups  []string    `json:"groups"`
	Role    models.Role `json:"role,omitempty"`
	Matched bool        `json:"matched"`
}

func newMapGroupsCmd(opts *rootOptions) *cobra.Command {
	var (
		mappingPath string
		groups      []string
		claimsPath  string
		idToken     string
		issuer      string
		clientID    string
		claim       string
	)

	cmd := &cobra.Command{
		Use:   "map-groups",
		Short: "Resolve identity provider groups to an organization role",
		Long: `Resolve a user's identity provider groups to a role using a group
mapping policy (YAML) and print the result as JSON.

Groups come from --groups, from a JSON claims file (--claims), or from an ID
token verified against --issuer and --client-id (--id-token). Exits non-zero
when no role resolves.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mapping, err := config.LoadGroupMapping(mappingPath)
			if err != nil {
				return err
			}
			if claim == "" {
				claim = mapping.GroupsClaim
			}

			var received []string
			switch {
			case idToken != "":
				if issuer == "" || clientID == "" {
					return errors.New("--id-token needs --issuer and --client-id")
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				provider, err := auth.NewOIDC(ctx, auth.DefaultOIDCConfig(issuer, clientID, "", ""), opts.logger)
				if err != nil {
					return err
				}
				claims, err := provider.Claims(ctx, strings.TrimSpace(idToken))
				if err != nil {
					return err
				}
				received = auth.ExtractGroups(claims, claim)
			case claimsPath != "":
				data, err := readInput(cmd, claimsPath)
				if err != nil {
					return err
				}
				claims := jwt.MapClaims{}
				if err := json.Unmarshal(data, &claims); err != nil {
					return fmt.Errorf("parse claims: %w", err)
				}
				received = auth.ExtractGroups(claims, claim)
			default:
				received = groups
			}
			if received == nil {
				received = []string{}
			}

			role, ok := auth.ResolveRoleFromGroups(received, mapping)
			out := mapGroupsOutput{Groups: received, Role: role, Matched: ok}
			opts.logger.Debug().Strs("groups", received).Bool("matched", ok).Msg("resolved group mapping")

			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: no role for groups", errInvalid)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "Group mapping policy YAML file")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Comma-separated groups")
	cmd.Flags().StringVar(&claimsPath, "claims", "", "JSON claims file, - for stdin")
	cmd.Flags().StringVar(&idToken, "id-token", "", "Raw ID token to verify")
	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer URL for --id-token")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OIDC client ID for --id-token")
	cmd.Flags().StringVar(&claim, "claim", "", "Groups claim name overriding the policy's")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}
