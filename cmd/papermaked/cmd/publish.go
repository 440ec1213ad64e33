// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/config"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/registry"
	"github.com/spf13/cobra"
)

var publishFlags struct {
	namespace  string
	name       string
	tag        string
	entrypoint string
	dir        string
	author     string
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a template bundle to the registry",
	Long: `Publish walks a directory, stores every file as a content-addressed blob,
assembles and stores the manifest, and points the given tag at it.`,
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

		files, err := collectFiles(publishFlags.dir)
		if err != nil {
			wrapFatalln("reading template directory", err)
			return
		}

		var namespace *string
		if publishFlags.namespace != "" {
			namespace = &publishFlags.namespace
		}

		reg := registry.NewRegistry(store, cache.NewTagCache(), nil)
		d, err := reg.Publish(ctx, registry.PublishRequest{
			Namespace:  namespace,
			Name:       publishFlags.name,
			Tag:        publishFlags.tag,
			Entrypoint: publishFlags.entrypoint,
			Files:      files,
			Metadata:   manifest.TemplateMetadata{Name: publishFlags.name, Author: publishFlags.author},
		})
		if err != nil {
			wrapFatalln("publishing template", err)
			return
		}

		logStdOut("%s\n", d.String())
	},
}

// collectFiles walks dir and returns every regular file's contents keyed
// by its slash-separated path relative to dir.
func collectFiles(dir string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	return files, err
}

func init() {
	publishCmd.Flags().StringVar(&publishFlags.namespace, "namespace", "", "template namespace")
	publishCmd.Flags().StringVar(&publishFlags.name, "name", "", "template name")
	publishCmd.Flags().StringVar(&publishFlags.tag, "tag", "latest", "tag to point at the published manifest")
	publishCmd.Flags().StringVar(&publishFlags.entrypoint, "entrypoint", "", "entrypoint logical path within the template directory")
	publishCmd.Flags().StringVar(&publishFlags.dir, "dir", ".", "template directory to publish")
	publishCmd.Flags().StringVar(&publishFlags.author, "author", "", "template author, recorded in the manifest metadata")
	_ = publishCmd.MarkFlagRequired("name")
	_ = publishCmd.MarkFlagRequired("entrypoint")
	rootCmd.AddCommand(publishCmd)
}
