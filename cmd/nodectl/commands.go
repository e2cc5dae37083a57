package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/config"
	"github.com/dunamismax/curveflow/internal/curvenodes"
	"github.com/dunamismax/curveflow/internal/id"
	"github.com/dunamismax/curveflow/internal/logging"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/pipeline"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "nodectl",
		Short:         "Inspect and run curve editor nodes locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Diagnostics level (debug, info, warn, error)")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newDescribeCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) *log.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), "nodectl", config.LogConfig{Level: o.logLevel})
}

func (o *rootOptions) registry(cmd *cobra.Command) (*node.Registry, error) {
	logger := o.logger(cmd)
	r := node.NewRegistry()
	if err := r.Install(curvenodes.New(logger)); err != nil {
		return nil, err
	}
	return r, nil
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.registry(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tCATEGORY\tINPUTS\tOUTPUTS")
			for _, d := range r.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", d.Name, d.DisplayName, d.Category, len(d.Inputs), len(d.Outputs))
			}
			return tw.Flush()
		},
	}
}

func newDescribeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Print a node descriptor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.registry(cmd)
			if err != nil {
				return err
			}
			d, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", node.ErrNodeNotFound, args[0])
			}
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		inputsPath string
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Execute a node with inputs read from a JSON file",
		Long: "Execute a node with inputs read from a JSON object file (\"-\" reads stdin).\n" +
			"With --out, result.json and, for curve nodes, curves.cube are written under DIR/<invocation>.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.registry(cmd)
			if err != nil {
				return err
			}
			inputs, err := readInputs(cmd.InOrStdin(), inputsPath)
			if err != nil {
				return err
			}

			var emitter pipeline.Emitter = pipeline.DiscardEmitter{}
			if strings.TrimSpace(outDir) != "" {
				emitter = pipeline.LocalFileEmitter{OutputDir: outDir}
			}
			processor, err := pipeline.NewProcessor(r, emitter)
			if err != nil {
				return err
			}

			res, err := processor.Process(context.Background(), pipeline.Request{
				InvocationID: id.New(),
				Node:         args[0],
				Inputs:       inputs,
			})
			if err != nil {
				return err
			}
			if outDir != "" {
				logger := opts.logger(cmd)
				for _, a := range res.Artifacts {
					logger.Info("wrote artifact", "name", a.Name, "path", a.Path, "bytes", a.Bytes)
				}
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "JSON file with the node inputs")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write artifacts to")
	return cmd
}

func readInputs(stdin io.Reader, path string) (map[string]any, error) {
	var (
		raw []byte
		err error
	)
	switch path {
	case "":
		return map[string]any{}, nil
	case "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	var inputs map[string]any
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("decode inputs: %w", err)
	}
	return inputs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
