// Package pipeline runs the build flow for one job: fetch the
// repository, scan its Java sources, generate a test suite, package the
// result as a zip artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atomiq/atomiq/core/archive"
	"github.com/atomiq/atomiq/core/fetch"
	"github.com/atomiq/atomiq/core/generate"
	"github.com/atomiq/atomiq/core/infra/config"
	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/infra/metrics"
	"github.com/atomiq/atomiq/core/job"
	"github.com/atomiq/atomiq/core/materialize"
	"github.com/atomiq/atomiq/core/scan"
)

// rawOutputFile holds the unparsed model output for troubleshooting.
const rawOutputFile = "_generator_raw.md"

// ErrNoJavaFiles is returned when the repository has no Java sources.
var ErrNoJavaFiles = errors.New("no java files found in the repository")

// Pipeline executes build jobs against a registry. The fetch and
// provider hooks exist so tests can run without git or a model backend.
type Pipeline struct {
	cfg     *config.Config
	reg     *job.Registry
	metrics metrics.Metrics

	fetchRepo   func(ctx context.Context, url, dest string) (string, error)
	newProvider func(opts generate.Options) (generate.Provider, error)
}

// New builds a pipeline. A nil metrics implementation is replaced with
// the no-op one.
func New(cfg *config.Config, reg *job.Registry, m metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Pipeline{
		cfg:         cfg,
		reg:         reg,
		metrics:     m,
		fetchRepo:   fetch.Clone,
		newProvider: generate.New,
	}
}

type runState struct {
	workDir   string
	repoDir   string
	outRoot   string
	artifact  string
	summaries []scan.Summary
}

// Run executes the full pipeline for opts and finalizes the job record.
// It is meant to run in its own goroutine; the returned error is the
// same one recorded on the job.
func (p *Pipeline) Run(ctx context.Context, opts job.BuildOptions) error {
	p.metrics.IncJobsStarted()
	logging.Info("pipeline", "job started", "job", opts.JobID, "url", opts.GitHubURL)

	st := &runState{
		workDir: filepath.Join(p.cfg.WorkDir, opts.JobID),
	}
	st.outRoot = filepath.Join(st.workDir, "generated-tests")

	progress := func(percent int, label string) {
		if err := p.reg.UpdateProgress(opts.JobID, percent, label, ""); err != nil {
			logging.Warn("pipeline", "progress update failed", "job", opts.JobID, "error", err)
		}
	}

	err := os.MkdirAll(st.outRoot, 0o755)
	if err == nil {
		err = runStages(ctx, p.stages(opts, st), progress, p.metrics)
	}
	if err != nil {
		logging.Error("pipeline", "job failed", "job", opts.JobID, "error", err)
		if ferr := p.reg.MarkFailed(opts.JobID, err.Error()); ferr != nil {
			logging.Warn("pipeline", "mark failed", "job", opts.JobID, "error", ferr)
		}
		p.metrics.IncJobsCompleted("failed")
		return err
	}

	if err := p.reg.MarkSucceeded(opts.JobID, st.artifact); err != nil {
		logging.Warn("pipeline", "mark succeeded", "job", opts.JobID, "error", err)
	}
	p.metrics.IncJobsCompleted("succeeded")
	logging.Info("pipeline", "job complete", "job", opts.JobID, "artifact", st.artifact)
	return nil
}

func (p *Pipeline) stages(opts job.BuildOptions, st *runState) []Stage {
	return []Stage{
		{
			Name:     "fetch",
			Label:    "Fetching repository",
			Percent:  5,
			Required: true,
			Run: func(ctx context.Context) error {
				repoDir, err := p.fetchRepo(ctx, opts.GitHubURL, st.workDir)
				if err != nil {
					return err
				}
				st.repoDir = repoDir
				return nil
			},
		},
		{
			Name:     "scan",
			Label:    "Scanning Java sources",
			Percent:  25,
			Required: true,
			Run: func(ctx context.Context) error {
				summaries, err := scan.Repo(st.repoDir, p.cfg.Limits.MaxScanFiles)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					return ErrNoJavaFiles
				}
				st.summaries = summaries
				return nil
			},
		},
		{
			Name:     "generate",
			Label:    "AI generation",
			Percent:  55,
			Required: opts.GenerationRequired,
			Run: func(ctx context.Context) error {
				return p.generateSuite(ctx, opts, st)
			},
			Fallback: func(ctx context.Context) error {
				return writeScaffold(st.outRoot, st.summaries, opts.GenerateUnit, opts.GenerateBDD)
			},
		},
		{
			Name:     "package",
			Label:    "Packaging",
			Percent:  85,
			Required: true,
			Run: func(ctx context.Context) error {
				if err := os.MkdirAll(p.cfg.ArtifactsDir, 0o755); err != nil {
					return fmt.Errorf("create artifacts dir: %w", err)
				}
				zipPath := filepath.Join(p.cfg.ArtifactsDir, opts.JobID+"-tests.zip")
				if err := archive.Pack(st.outRoot, zipPath); err != nil {
					return err
				}
				st.artifact = zipPath
				return nil
			},
		},
	}
}

// generateSuite calls the model provider and materializes its FILE
// blocks. The raw output is persisted before parsing so a bad response
// can be inspected. When the stage is optional, any error here routes to
// the scaffold fallback with a NOTICE recording the reason.
func (p *Pipeline) generateSuite(ctx context.Context, opts job.BuildOptions, st *runState) (err error) {
	defer func() {
		if err != nil && !opts.GenerationRequired {
			writeNotice(st.outRoot, err)
		}
	}()

	bundle := scan.Bundle(st.summaries, p.cfg.Limits.MaxBundleFiles, p.cfg.Limits.PerFileChars)
	if opts.RequirementPath != "" {
		raw, rerr := os.ReadFile(opts.RequirementPath)
		if rerr != nil {
			logging.Warn("pipeline", "requirement file unreadable", "job", opts.JobID, "error", rerr)
		} else {
			bundle = scan.AppendRequirement(bundle, string(raw), p.cfg.Limits.RequirementChars)
		}
	}

	model := opts.Model
	if model == "" {
		switch opts.Provider {
		case "ollama":
			model = p.cfg.OllamaModel
		default:
			model = p.cfg.OpenAIModel
		}
	}
	provider, err := p.newProvider(generate.Options{
		Provider:  opts.Provider,
		Model:     model,
		APIKey:    opts.APIKey,
		OllamaURL: p.cfg.OllamaURL,
	})
	if err != nil {
		return err
	}

	prompt := generate.BuildPrompt(bundle, opts.Prompt, opts.GenerateUnit, opts.GenerateBDD)
	text, err := provider.Generate(ctx, prompt)
	if text != "" {
		if werr := os.WriteFile(filepath.Join(st.outRoot, rawOutputFile), []byte(text), 0o644); werr != nil {
			logging.Warn("pipeline", "raw output not persisted", "job", opts.JobID, "error", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("provider %s: %w", provider.Name(), err)
	}

	n, err := materialize.WriteBlocks(text, st.outRoot, materialize.DefaultRoots)
	if err != nil {
		return err
	}
	if n == 0 {
		return materialize.ErrNoFiles
	}
	p.metrics.AddFilesMaterialized(n)
	logging.Info("pipeline", "suite materialized", "job", opts.JobID, "files", n)
	return nil
}

func writeNotice(outRoot string, cause error) {
	body := "AI generation not available or failed; using fallback scaffold.\n" + cause.Error() + "\n"
	if err := os.WriteFile(filepath.Join(outRoot, "NOTICE.txt"), []byte(body), 0o644); err != nil {
		logging.Warn("pipeline", "notice not written", "error", err)
	}
}
