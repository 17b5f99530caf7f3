// Package main provides the specforge binary entry point.
// Specforge turns natural-language requirements into formal specifications
// with a language model, reviews them, and repairs them automatically.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "specforge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Formal specifications from natural-language requirements",
		Long: `Specforge generates formal specifications (F*, Dafny, Coq, Isabelle,
Lean, TLA+, Why3, Z3) from natural-language requirements using a
language model, asks the model to review them, and repairs failing
specifications automatically.

Provider credentials are read from <PROVIDER>_API_KEY environment
variables (AZURE_OPENAI_API_KEY for Azure) or from model.api_key.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable styled output")

	cmd.AddCommand(
		generateCmd(&flags),
		validateCmd(&flags),
		refineCmd(&flags),
		translateCmd(&flags),
		importCmd(&flags),
		propertiesCmd(&flags),
		templatesCmd(&flags),
		completenessCmd(&flags),
		verifyCodeCmd(&flags),
		exportCmd(&flags),
		historyCmd(&flags),
		callsCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}
