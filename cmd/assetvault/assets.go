package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/namespace"
	"github.com/bitfsorg/assetvault/vault"
)

type putOutput struct {
	ID             string     `json:"id"`
	StorageKey     string     `json:"storageKey"`
	Secure         bool       `json:"secure"`
	SizeBytes      int64      `json:"sizeBytes"`
	Checksum       string     `json:"checksum"`
	PublicURL      string     `json:"publicUrl,omitempty"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	DownloadURL    string     `json:"downloadUrl,omitempty"`
}

func newPutCmd(a *app) *cobra.Command {
	var (
		public    bool
		kind      string
		mimeType  string
		ownerRefs []string
		owner     namespace.Owner
	)
	cmd := &cobra.Command{
		Use:   "put [file]",
		Short: "Store a file in the vault",
		Long: `Store a file, encrypting it unless --public is given, and print the
catalog record as JSON. Secure assets come back with a download token.

Examples:
  assetvault put report.pdf --owner-ref project:p-17
  assetvault put logo.png --public --kind branding`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			refs := make([]catalog.OwnerRef, 0, len(ownerRefs))
			for _, raw := range ownerRefs {
				ref, err := catalog.ParseOwnerRef(raw)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			name := filepath.Base(args[0])
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(name))
			}

			v, err := a.openVault(cmd.Context(), vault.OpenOptions{})
			if err != nil {
				return err
			}
			defer v.Close()

			res, err := v.Upload(cmd.Context(), vault.Upload{
				Data:      data,
				Filename:  name,
				MimeType:  mimeType,
				Secure:    !public,
				OwnerRefs: refs,
				Kind:      kind,
				Owner:     owner,
			})
			if err != nil {
				return err
			}

			out := putOutput{
				ID:          res.Asset.ID,
				StorageKey:  res.Asset.StorageKey,
				Secure:      res.Asset.IsSecure(),
				SizeBytes:   res.Asset.SizeBytes,
				Checksum:    res.Asset.Checksum,
				PublicURL:   res.Asset.PublicURL(),
				Token:       res.Token,
				DownloadURL: res.DownloadURL,
			}
			if res.Token != "" {
				out.TokenExpiresAt = &res.TokenExpiresAt
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "store unencrypted and publicly readable")
	cmd.Flags().StringVar(&kind, "kind", "", "asset kind (default deliverable)")
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "content type (default guessed from the extension)")
	cmd.Flags().StringArrayVar(&ownerRefs, "owner-ref", nil, "owning entity as type:id (repeatable)")
	cmd.Flags().StringVar(&owner.ID, "owner-id", "", "uploader id used for the remote namespace")
	cmd.Flags().StringVar(&owner.Email, "owner-email", "", "uploader email used to name the remote namespace")
	cmd.Flags().StringVar(&owner.Username, "owner-username", "", "uploader username used when no email is given")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var tok, output string
	cmd := &cobra.Command{
		Use:   "get [asset-id]",
		Short: "Retrieve an asset",
		Long: `Retrieve an asset and write its plaintext to --output or stdout.
Public assets held remotely print their public URL instead.

Examples:
  assetvault get 3f0c... --token eyJhbGciOi... -o report.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd.Context(), vault.OpenOptions{})
			if err != nil {
				return err
			}
			defer v.Close()

			d, err := v.Retrieve(cmd.Context(), args[0], tok)
			if err != nil {
				return err
			}
			if d.RedirectURL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), d.RedirectURL)
				return nil
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(d.Data)
				return err
			}
			return os.WriteFile(output, d.Data, 0o600)
		},
	}
	cmd.Flags().StringVar(&tok, "token", "", "download token")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [asset-id]",
		Short: "Issue a download token for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd.Context(), vault.OpenOptions{})
			if err != nil {
				return err
			}
			defer v.Close()

			grant, err := v.IssueToken(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), grant)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from configuration)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
