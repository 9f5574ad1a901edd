package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadiacollections/apinline/internal/app"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apinline",
		Short: "Inline remote JSON into static builds",
		Long: `apinline fetches configured API endpoints at build time, saves the
responses as JSON files, injects them into HTML documents as window globals
and writes TypeScript declarations for them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd(), newAccessCmd(), newVersionCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Copy the source tree to the output and inline API data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := app.LoadOptions(cmd.Flags())
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	app.BindFlags(cmd.Flags())
	return cmd
}

func newAccessCmd() *cobra.Command {
	var opts app.AccessOptions
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Resolve a variable the way a page would and print its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Access(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Variable, "var", "", "global variable name")
	f.StringVar(&opts.File, "file", "", "data file path relative to the base url")
	f.StringVar(&opts.BaseURL, "base-url", "", "site origin serving the data files")
	f.StringVar(&opts.Manifest, "manifest", "", "globals manifest standing in for the page globals")
	f.StringVar(&opts.Method, "method", "", "request method (default GET)")
	f.StringArrayVarP(&opts.Headers, "header", "H", nil, "request header as key:value (repeatable)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("var")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apinline %s (commit: %s)\n", version, commit)
		},
	}
}
