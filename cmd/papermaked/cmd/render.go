// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/config"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/dlogger"
	"github.com/papermake/papermake/pkg/engine"
	"github.com/papermake/papermake/pkg/recordsink"
	"github.com/papermake/papermake/pkg/registry"
	"github.com/papermake/papermake/pkg/render"
	"github.com/spf13/cobra"
)

var renderFlags struct {
	reference string
	dataFile  string
	outFile   string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a published template against JSON data",
	Long: `Render resolves a template reference, compiles it against the given JSON
data file, and writes the resulting PDF to --out (or stdout when --out is
unset).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			wrapFatalln("loading configuration", err)
			return
		}

		logger, err := dlogger.GetLogger(cfg.LogLevel)
		if err != nil {
			wrapFatalln("building logger", err)
			return
		}

		ctx := context.Background()
		store, err := buildStore(ctx, cfg)
		if err != nil {
			wrapFatalln("building storage backend", err)
			return
		}

		data, err := ioutil.ReadFile(renderFlags.dataFile)
		if err != nil {
			wrapFatalln("reading data file", err)
			return
		}

		tags := cache.NewTagCache()
		resolver := registry.NewResolver(store, tags)

		sink := recordsink.NewLoggingSink(logger)
		defer sink.Close()

		pipeline := render.New(resolver, store, &engine.Mock{},
			render.Logger(logger),
			render.ManifestCache(cache.NewManifestCache(cfg.ManifestCacheSize)),
			render.WarmedCache(cache.NewWarmedCache(cfg.WarmedCacheSize)),
			render.AdmissionLimit(cfg.AdmissionLimit),
			render.RecordSink(sink),
		)

		result, err := pipeline.Render(ctx, render.Request{
			ReferenceText: renderFlags.reference,
			Data:          data,
		})
		if err != nil {
			wrapFatalln("rendering template", err)
			return
		}

		pdf, err := store.Get(ctx, digest.BlobKey(result.PDFDigest))
		if err != nil {
			wrapFatalln("fetching rendered pdf", err)
			return
		}

		if renderFlags.outFile == "" {
			if _, err := os.Stdout.Write(pdf); err != nil {
				wrapFatalln("writing pdf to stdout", err)
			}
			return
		}
		if err := ioutil.WriteFile(renderFlags.outFile, pdf, 0o600); err != nil {
			wrapFatalln("writing pdf to file", err)
		}
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderFlags.reference, "ref", "", "template reference, e.g. acme/invoice:latest")
	renderCmd.Flags().StringVar(&renderFlags.dataFile, "data", "", "path to a JSON data file")
	renderCmd.Flags().StringVar(&renderFlags.outFile, "out", "", "path to write the rendered PDF (defaults to stdout)")
	_ = renderCmd.MarkFlagRequired("ref")
	_ = renderCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(renderCmd)
}
