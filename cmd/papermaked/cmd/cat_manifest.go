// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/config"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/reference"
	"github.com/papermake/papermake/pkg/registry"
	"github.com/spf13/cobra"
)

var catManifestFlags struct {
	reference string
}

var catManifestCmd = &cobra.Command{
	Use:   "cat-manifest",
	Short: "Resolve a reference and print its manifest",
	Long:  `cat-manifest resolves the given reference and prints its decoded manifest's entrypoint and file digests.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			wrapFatalln("loading configuration", err)
			return
		}

		ctx := context.Background()
		store, err := buildStore(ctx, cfg)
		if err != nil {
			wrapFatalln("building storage backend", err)
			return
		}

		ref, err := reference.Parse(catManifestFlags.reference)
		if err != nil {
			wrapFatalln("parsing reference", err)
			return
		}

		resolver := registry.NewResolver(store, cache.NewTagCache())
		manifestDigest, err := resolver.Resolve(ctx, ref)
		if err != nil {
			wrapFatalln("resolving reference", err)
			return
		}

		raw, err := store.Get(ctx, digest.ManifestKey(manifestDigest))
		if err != nil {
			wrapFatalln("fetching manifest", err)
			return
		}
		m, err := manifest.Decode(raw)
		if err != nil {
			wrapFatalln("decoding manifest", err)
			return
		}

		logStdOut("manifest: %s\n", manifestDigest)
		logStdOut("entrypoint: %s\n", m.Entrypoint)
		for _, path := range manifest.SortedPaths(m) {
			logStdOut("  %s  %s\n", m.Files[path], path)
		}
	},
}

func init() {
	catManifestCmd.Flags().StringVar(&catManifestFlags.reference, "ref", "", "template reference, e.g. acme/invoice:latest")
	_ = catManifestCmd.MarkFlagRequired("ref")
	rootCmd.AddCommand(catManifestCmd)
}
