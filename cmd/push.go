package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/config"
	"github.com/eykd/csprocessor-go/internal/merge"
)

// PushIO handles all I/O for the push command.
type PushIO interface {
	SpecReader
	CatalogLoader
	OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (NodeStore, error)
}

// NewPushCmd creates the push subcommand.
func NewPushCmd(io PushIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "push <file>",
		Short:        "Validate a content specification and merge it into the node store",
		Long: `Validate a content specification and merge it into the node store.

Each parsed node is matched to the first unclaimed stored sibling of the
same type with the same key: topic id and revision for existing topics,
title for levels, key for metadata and text for comments. Nodes with no
match are added and unmatched stored nodes are removed.

Matches are not remembered between pushes. Renaming a level therefore
removes it and its whole stored subtree and adds them again, and new
topics (N or N<n>) are replaced on every push.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			specID, _ := cmd.Flags().GetString("spec-id")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			ctx := cmd.Context()

			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			res, err := checkSpec(ctx, io, io, sess, args[0])
			if err != nil {
				return err
			}
			printDiagnostics(cmd, res.diags)
			if !res.valid {
				return errSpecInvalid
			}

			if specID == "" {
				specID = res.spec.ID
			}
			if specID == "" {
				return errors.New("no content spec id: set ID in the file or pass --spec-id")
			}

			store, err := io.OpenStore(ctx, sess.cfg.Store, sess.logger)
			if err != nil {
				return fmt.Errorf("opening node store: %w", err)
			}
			defer store.Close()

			persisted, err := store.ContentSpecNodes(ctx, specID)
			if err != nil {
				return fmt.Errorf("loading nodes for content spec %s: %w", specID, err)
			}

			r := merge.NewMerger(specID, persisted, nil, sess.logger).
				WithNodeFactory(store.NewNode).
				MergeContentSpec(res.spec)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d added, %d updated, %d removed\n", len(r.Added), len(r.Updated), len(r.Removed))

			if dryRun {
				writeMergePlan(out, r)
				return nil
			}
			sum, err := merge.Apply(ctx, store, r)
			if err != nil {
				return fmt.Errorf("applying changes: %w", err)
			}
			if sum == (merge.Summary{}) {
				return nil
			}
			if err := store.Commit(ctx); err != nil {
				return fmt.Errorf("committing node store: %w", err)
			}
			sess.logger.Info("pushed content spec",
				zap.String("contentSpec", specID),
				zap.Int("created", sum.Created),
				zap.Int("updated", sum.Updated),
				zap.Int("relinked", sum.Relinked),
				zap.Int("deleted", sum.Deleted),
			)
			return nil
		},
	}

	cmd.Flags().String("spec-id", "", "content spec id (default: the file's ID metadata)")
	cmd.Flags().Bool("dry-run", false, "print the changes without writing them")

	return cmd
}

// writeMergePlan lists each pending change, one per line.
func writeMergePlan(w io.Writer, r *merge.Result) {
	for _, n := range r.Added {
		fmt.Fprintf(w, "+ %s %q\n", n.Type, sanitizeText(n.Title))
	}
	for _, u := range r.Updated {
		fmt.Fprintf(w, "~ %s %s %q %v\n", u.Node.ID, u.Node.Type, sanitizeText(u.Node.Title), u.Fields)
	}
	for _, n := range r.Removed {
		fmt.Fprintf(w, "- %s %s %q\n", n.ID, n.Type, sanitizeText(n.Title))
	}
}

// filePushIO implements PushIO using OS file I/O and the configured store.
type filePushIO struct {
	fileValidateIO
}

func newDefaultPushIO() *filePushIO {
	return &filePushIO{}
}

func (f *filePushIO) OpenStore(_ context.Context, cfg config.StoreConfig, logger *zap.Logger) (NodeStore, error) {
	return openNodeStore(cfg, logger)
}
