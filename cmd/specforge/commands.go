package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/specforge/generator"
	"github.com/c360studio/specforge/parser"
	"github.com/c360studio/specforge/repair"
	"github.com/c360studio/specforge/spec"
	"github.com/c360studio/specforge/storage"
	"github.com/c360studio/specforge/watch"
	"github.com/c360studio/specforge/worker"
)

type specWithReport struct {
	spec   *spec.Specification
	report *spec.ValidationReport
}

// withApp builds the App for one command invocation and closes it afterwards.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *App) error) error {
	ctx := cmd.Context()
	a, err := NewApp(ctx, *flags)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// readRequirements merges positional arguments with the lines of file.
func readRequirements(args []string, file string) ([]string, error) {
	reqs := append([]string{}, args...)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read requirements: %w", err)
		}
		reqs = append(reqs, strings.Split(string(data), "\n")...)
	}
	reqs = spec.NormalizeRequirements(reqs)
	if len(reqs) == 0 {
		return nil, errors.New("no requirements given")
	}
	return reqs, nil
}

// notation resolves the --notation flag, falling back to the configured or
// recommended notation for domain.
func (a *App) notation(flag string, domain spec.Domain) spec.Notation {
	if flag == "" {
		return a.cfg.NotationFor(domain)
	}
	return spec.ParseNotation(flag)
}

func (a *App) depth(flag string) (spec.Depth, error) {
	if flag == "" {
		return a.cfg.Depth()
	}
	return spec.ParseDepth(flag)
}

func generateCmd(flags *globalFlags) *cobra.Command {
	var (
		reqFile  string
		domain   string
		notation string
		depth    string
		project  string
		noRepair bool
	)

	cmd := &cobra.Command{
		Use:   "generate [requirement...]",
		Short: "Generate, validate and repair a specification",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequirements(args, reqFile)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				d, err := a.depth(depth)
				if err != nil {
					return err
				}
				dom := spec.ParseDomain(domain)
				opts := generator.Options{Notation: a.notation(notation, dom), Depth: d, Repair: !noRepair}

				out, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*generator.Outcome, error) {
					return a.generator.Run(ctx, reqs, dom, opts)
				})
				if err != nil {
					return err
				}

				a.printer.Spec(out.Spec)
				a.printer.Report(out.Report)

				if project != "" {
					return a.Save(ctx, project, &specWithReport{spec: out.Spec, report: out.Report})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reqFile, "file", "f", "", "Read requirements from file, one per line")
	cmd.Flags().StringVarP(&domain, "domain", "d", string(spec.DomainCryptography), "Application domain")
	cmd.Flags().StringVarP(&notation, "notation", "n", "", "Target notation (default: recommended for the domain)")
	cmd.Flags().StringVar(&depth, "depth", "", "Validation depth (basic, typecheck, formal)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Save the result to this project")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "Report issues without repairing")
	return cmd
}

// loadSpec reads a specification from a project or from a source file. A
// project missing on disk is looked up in the KV bucket when one is
// configured.
func loadSpec(ctx context.Context, a *App, project, file, notation string) (*spec.Specification, error) {
	if project != "" {
		s, err := a.projects.Load(ctx, project)
		if errors.Is(err, storage.ErrNotFound) && a.kv != nil {
			var rec *storage.Record
			if rec, err = a.kv.Latest(ctx, project); err == nil {
				a.logger.Info("Loaded specification from KV", "project", project, "spec_id", rec.Spec.ID)
				return rec.Spec, nil
			}
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("project %q has no specification", project)
		}
		return s, err
	}
	if file == "" {
		return nil, errors.New("either --project or --file is required")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	return specFromSource(data, file, notation)
}

// specFromSource wraps raw source as a specification. The notation comes from
// the flag or, when empty, the file extension.
func specFromSource(data []byte, file, notation string) (*spec.Specification, error) {
	n := spec.NotationFromExtension(filepath.Ext(file))
	if notation != "" {
		n = spec.ParseNotation(notation)
	}
	artifact, err := parser.Extract(string(data), n)
	if err != nil {
		return nil, err
	}
	return spec.New(spec.NewID("file"), nil, artifact, spec.Domain("unspecified"), spec.ConfidenceImported), nil
}

func validateCmd(flags *globalFlags) *cobra.Command {
	var (
		project   string
		file      string
		notation  string
		depth     string
		fix       bool
		bestEff   bool
		watchFile bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Review a specification, optionally repairing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchFile && file == "" {
				return errors.New("--watch requires --file")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, file, notation)
				if err != nil {
					return err
				}
				d, err := a.depth(depth)
				if err != nil {
					return err
				}

				if watchFile {
					return watchValidate(ctx, a, file, notation, d)
				}

				if !fix {
					report, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*spec.ValidationReport, error) {
						return a.generator.Validate(ctx, s, d)
					})
					if err != nil {
						return err
					}
					a.printer.Report(report)
					if report.Valid {
						a.printer.Description(generator.Describe(s))
					}
					return nil
				}

				res, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*repair.Result, error) {
					return a.generator.ValidateAndRepair(ctx, s, d)
				})
				if err != nil {
					return err
				}
				if res.Fixed() {
					a.printer.Code(res.Spec.Artifact.Code)
				}
				a.printer.Report(res.Report)
				if res.Report.Valid {
					a.printer.Description(generator.Describe(res.Spec))
				}

				if project == "" {
					return nil
				}
				_, hasFix := res.Report.BestEffortFix()
				if res.Fixed() || (bestEff && hasFix) {
					return a.Save(ctx, project, &specWithReport{spec: res.Spec, report: res.Report})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project to validate")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Specification source file")
	cmd.Flags().StringVarP(&notation, "notation", "n", "", "Notation of --file (inferred from the extension)")
	cmd.Flags().StringVar(&depth, "depth", "", "Validation depth (basic, typecheck, formal)")
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair the specification when the review fails")
	cmd.Flags().BoolVar(&bestEff, "save-best-effort", false, "With --fix and --project, save the last attempt even if issues remain")
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Re-validate --file whenever it changes")
	return cmd
}

// watchValidate reviews file on every content change until ctx is done.
func watchValidate(ctx context.Context, a *App, file, notation string, d spec.Depth) error {
	w, err := watch.New(file, watch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ctx context.Context, content []byte) error {
		s, err := specFromSource(content, file, notation)
		if err != nil {
			return err
		}
		report, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*spec.ValidationReport, error) {
			return a.generator.Validate(ctx, s, d)
		})
		if err != nil {
			return err
		}
		a.printer.Report(report)
		return nil
	})
}

func translateCmd(flags *globalFlags) *cobra.Command {
	var (
		project string
		target  string
		saveAs  string
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a project specification to another notation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, "", "")
				if err != nil {
					return err
				}
				out, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*spec.Specification, error) {
					return a.generator.Translate(ctx, s, spec.ParseNotation(target))
				})
				if err != nil {
					return err
				}
				a.printer.Spec(out)
				if saveAs != "" {
					return a.Save(ctx, saveAs, &specWithReport{spec: out})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Source project")
	cmd.Flags().StringVar(&target, "to", "", "Target notation")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "Save the translation to this project")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func refineCmd(flags *globalFlags) *cobra.Command {
	var (
		project  string
		feedback string
		saveAs   string
	)

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Revise a project specification according to feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(feedback) == "" {
				return errors.New("--feedback must not be empty")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, "", "")
				if err != nil {
					return err
				}
				out, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*spec.Specification, error) {
					return a.generator.Refine(ctx, s, feedback)
				})
				if err != nil {
					return err
				}
				a.printer.Spec(out)

				target := project
				if saveAs != "" {
					target = saveAs
				}
				return a.Save(ctx, target, &specWithReport{spec: out})
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project to refine")
	cmd.Flags().StringVar(&feedback, "feedback", "", "What to change")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "Save the revision to this project instead")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func importCmd(flags *globalFlags) *cobra.Command {
	var (
		notation string
		project  string
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an existing specification and recover its requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read specification: %w", err)
			}
			n := spec.NotationFromExtension(filepath.Ext(args[0]))
			if notation != "" {
				n = spec.ParseNotation(notation)
			}

			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := worker.Do(ctx, a.pool, func(ctx context.Context) (*spec.Specification, error) {
					return a.generator.Import(ctx, string(data), n)
				})
				if err != nil {
					return err
				}
				a.printer.Spec(s)
				if project != "" {
					return a.Save(ctx, project, &specWithReport{spec: s})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&notation, "notation", "n", "", "Notation (inferred from the extension)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Save the import to this project")
	return cmd
}

func propertiesCmd(flags *globalFlags) *cobra.Command {
	var (
		reqFile  string
		domain   string
		paradigm string
		notation string
	)

	cmd := &cobra.Command{
		Use:   "properties [requirement...]",
		Short: "Interpret requirements as formal properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequirements(args, reqFile)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				ts, err := worker.Do(ctx, a.pool, func(ctx context.Context) ([]spec.Translation, error) {
					return a.generator.TranslateToProperties(ctx, reqs, spec.ParseDomain(domain))
				})
				if err != nil {
					return err
				}
				a.printer.Translations(ts)
				if paradigm == "" {
					return nil
				}

				artifact, err := worker.Do(ctx, a.pool, func(ctx context.Context) (spec.FormalArtifact, error) {
					return a.generator.Formalize(ctx, ts, a.notation(notation, spec.ParseDomain(domain)), generator.Paradigm(paradigm))
				})
				if err != nil {
					return err
				}
				a.printer.Code(artifact.Code)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reqFile, "file", "f", "", "Read requirements from file, one per line")
	cmd.Flags().StringVarP(&domain, "domain", "d", string(spec.DomainCryptography), "Application domain")
	cmd.Flags().StringVar(&paradigm, "formalize", "", `Also formalize the properties in a paradigm (e.g. "Hoare logic")`)
	cmd.Flags().StringVarP(&notation, "notation", "n", "", "Notation for --formalize")
	return cmd
}

func templatesCmd(flags *globalFlags) *cobra.Command {
	var (
		domain   string
		notation string
		apply    int
		reqFile  string
		project  string
	)

	cmd := &cobra.Command{
		Use:   "templates [requirement...]",
		Short: "List specification templates for a domain, or fill one from requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []string
			if apply > 0 {
				var err error
				if reqs, err = readRequirements(args, reqFile); err != nil {
					return err
				}
			}
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				dom := spec.ParseDomain(domain)
				n := a.notation(notation, dom)

				ts, err := worker.Do(ctx, a.pool, func(ctx context.Context) ([]generator.VerificationTemplate, error) {
					return a.generator.ListTemplates(ctx, dom, n)
				})
				if err != nil {
					return err
				}
				if apply == 0 {
					a.printer.Templates(ts)
					return nil
				}
				if apply > len(ts) {
					return fmt.Errorf("--apply %d: only %d templates available", apply, len(ts))
				}
				tmpl := ts[apply-1]

				translations, err := worker.Do(ctx, a.pool, func(ctx context.Context) ([]spec.Translation, error) {
					return a.generator.TranslateToProperties(ctx, reqs, dom)
				})
				if err != nil {
					return err
				}
				props := generator.PropertiesFromTranslations(translations)

				artifact, err := worker.Do(ctx, a.pool, func(ctx context.Context) (spec.FormalArtifact, error) {
					return a.generator.ApplyTemplate(ctx, tmpl, props)
				})
				if err != nil {
					return err
				}

				s := spec.New(spec.NewID("template"), reqs, artifact, dom, spec.ConfidenceGenerated)
				s.Properties = props
				a.printer.Spec(s)
				if project != "" {
					return a.Save(ctx, project, &specWithReport{spec: s})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", string(spec.DomainCryptography), "Application domain")
	cmd.Flags().StringVarP(&notation, "notation", "n", "", "Template notation (default: recommended for the domain)")
	cmd.Flags().IntVar(&apply, "apply", 0, "Fill the Nth template from the requirements")
	cmd.Flags().StringVarP(&reqFile, "file", "f", "", "Read requirements from file, one per line")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Save the filled template to this project")
	return cmd
}

func completenessCmd(flags *globalFlags) *cobra.Command {
	var (
		project string
		reqFile string
	)

	cmd := &cobra.Command{
		Use:   "completeness [requirement...]",
		Short: "Check whether a project specification covers its requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, "", "")
				if err != nil {
					return err
				}
				reqs := s.Requirements
				if len(args) > 0 || reqFile != "" {
					if reqs, err = readRequirements(args, reqFile); err != nil {
						return err
					}
				}

				type coverage struct {
					complete bool
					missing  []string
				}
				res, err := worker.Do(ctx, a.pool, func(ctx context.Context) (coverage, error) {
					complete, missing, err := a.generator.CheckCompleteness(ctx, s, reqs)
					return coverage{complete, missing}, err
				})
				if err != nil {
					return err
				}
				a.printer.Completeness(res.complete, res.missing)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project to check")
	cmd.Flags().StringVarP(&reqFile, "file", "f", "", "Check against requirements from file")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func verifyCodeCmd(flags *globalFlags) *cobra.Command {
	var (
		project string
		target  string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "verify-code",
		Short: "Generate a verifier-ready file for a project specification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, "", "")
				if err != nil {
					return err
				}
				n := s.Notation()
				if target != "" {
					n = spec.ParseNotation(target)
				}
				code, err := worker.Do(ctx, a.pool, func(ctx context.Context) (string, error) {
					return a.generator.GenerateVerificationCode(ctx, s, n)
				})
				if err != nil {
					return err
				}
				if out == "" {
					a.printer.Code(code)
					return nil
				}
				if err := writeFile(out, code); err != nil {
					return err
				}
				a.printer.Location("Written", out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project")
	cmd.Flags().StringVar(&target, "system", "", "Target verification system (defaults to the specification's)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to file instead of stdout")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var (
		project string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a project's specification source to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				s, err := loadSpec(ctx, a, project, "", "")
				if err != nil {
					return err
				}
				if out == "" {
					out = project + "." + s.Notation().Extension()
				}
				if err := writeFile(out, s.Artifact.Code); err != nil {
					return err
				}
				a.printer.Location("Exported", out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default <project>.<ext>)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func historyCmd(flags *globalFlags) *cobra.Command {
	var (
		project string
		specID  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored revisions of a project (requires storage.nats_url)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				if a.kv == nil {
					return errors.New("history unavailable: set storage.nats_url")
				}
				if specID != "" {
					rec, err := a.kv.Get(ctx, project, specID)
					if errors.Is(err, storage.ErrNotFound) {
						return fmt.Errorf("project %q has no revision %q", project, specID)
					}
					if err != nil {
						return err
					}
					a.printer.Spec(rec.Spec)
					if rec.Report != nil {
						a.printer.Report(rec.Report)
					}
					return nil
				}

				records, err := a.kv.List(ctx, project)
				if err != nil {
					return err
				}
				storage.SortBySavedAt(records)
				a.printer.History(project, records)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project")
	cmd.Flags().StringVar(&specID, "id", "", "Show one revision in full")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func callsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calls",
		Short: "List recorded model calls (requires storage.nats_url)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *App) error {
				if a.calls == nil {
					return errors.New("call log unavailable: set storage.nats_url")
				}
				calls, err := a.calls.List(ctx)
				if err != nil {
					return err
				}
				a.printer.Calls(calls)
				return nil
			})
		},
	}
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
