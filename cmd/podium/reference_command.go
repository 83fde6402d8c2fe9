package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"podium/internal/server"
)

func newReferenceCommand(ctx *commandContext) *cobra.Command {
	referenceCmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage reference documents",
	}

	referenceCmd.AddCommand(newReferenceAddCommand(ctx))

	return referenceCmd
}

func newReferenceAddCommand(ctx *commandContext) *cobra.Command {
	var userRef string
	var name string
	var docType string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Upload a reference document to score recordings against",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read reference file: %w", err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			if docType == "" {
				docType = strings.TrimPrefix(filepath.Ext(args[0]), ".")
			}
			doc, err := client.AddReference(cmd.Context(), server.ReferenceRequest{
				UserRef: userRef,
				Name:    name,
				Type:    docType,
				Content: string(content),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stored reference document %s (%s)\n", doc.ID, doc.Name)
			fmt.Fprintf(out, "Pass `--reference %s` on upload to score against it.\n", doc.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userRef, "user", "u", "", "Owning user reference (required)")
	cmd.Flags().StringVar(&name, "name", "", "Document name (defaults to the file name)")
	cmd.Flags().StringVar(&docType, "type", "", "Document type (defaults to the file extension)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
