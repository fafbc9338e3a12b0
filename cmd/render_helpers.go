package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/plotdesk-cli/internal/config"
	"github.com/KaramelBytes/plotdesk-cli/internal/render"
	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
	"github.com/KaramelBytes/plotdesk-cli/internal/session"
	"github.com/KaramelBytes/plotdesk-cli/internal/utils"
)

// resolveCategory picks the category from the flag value or falls back to
// the configured default.
func resolveCategory(flag string) (schema.Category, error) {
	name := strings.TrimSpace(flag)
	if name == "" && cfg != nil {
		name = cfg.DefaultCategory
	}
	if name == "" {
		name = cfgpkg.DefaultCategoryName
	}
	c, ok := schema.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown category %q (run 'plotdesk categories' for the list)", name)
	}
	return c, nil
}

// newRenderClient builds the service client from effective configuration.
func newRenderClient(cfg *cfgpkg.Global) *render.Client {
	base := ""
	key := ""
	if cfg != nil {
		base = cfg.ServiceURL
		key = cfg.APIKey
	}
	if base == "" {
		base = cfgpkg.DefaultServiceURL
	}
	return render.NewClient(base, key, time.Duration(httpTimeoutSec(cfg))*time.Second)
}

func httpTimeoutSec(cfg *cfgpkg.Global) int {
	if cfg != nil && cfg.HTTPTimeoutSec > 0 {
		return cfg.HTTPTimeoutSec
	}
	return cfgpkg.DefaultHTTPTimeoutSec
}

func outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return "."
}

// parseColorFlags parses repeated Group=#rrggbb flag values.
func parseColorFlags(vals []string) (map[string]string, error) {
	out := make(map[string]string, len(vals))
	for _, v := range vals {
		name, hex, ok := strings.Cut(v, "=")
		if !ok || name == "" || hex == "" {
			return nil, fmt.Errorf("invalid --color %q (want Group=#rrggbb)", v)
		}
		out[name] = hex
	}
	return out, nil
}

// loadColorFile reads a YAML map of group name to #rrggbb color.
func loadColorFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read colors file: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse colors file: %w", err)
	}
	return m, nil
}

// applyColors applies overrides in sorted key order for stable error
// messages.
func applyColors(ctrl *session.Controller, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctrl.SetColor(k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// artifactList collects the downloadable URLs from a result, image first.
func artifactList(res *render.Result) []string {
	if res == nil || res.ImageURL == "" {
		return nil
	}
	urls := []string{res.ImageURL}
	if res.EditableURL != "" {
		urls = append(urls, res.EditableURL)
	}
	return urls
}

// saveArtifacts downloads every artifact concurrently and writes each one as
// chart.<ext> in outDir.
func saveArtifacts(ctx context.Context, client *render.Client, res *render.Result, outDir string) ([]string, error) {
	urls := artifactList(res)
	if len(urls) == 0 {
		return nil, nil
	}
	if outDir == "" {
		outDir = "."
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}
	paths := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			data, ext, err := client.Download(gctx, u)
			if err != nil {
				return fmt.Errorf("download artifact: %w", err)
			}
			p := filepath.Join(outDir, "chart."+ext)
			if err := utils.SafeWriteFile(p, data); err != nil {
				return fmt.Errorf("save artifact: %w", err)
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// renderFailure folds a client error into the fixed user-facing message plus
// an actionable hint for the common classes.
func renderFailure(err error) error {
	var (
		authErr *render.AuthError
		rlErr   *render.RateLimitError
		brErr   *render.BadRequestError
		sErr    *render.ServerError
		unreach *render.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		return fmt.Errorf("%s (service unreachable at %s; check service_url or --service-url): %w", session.FailureMessage, unreach.Host, err)
	case errors.As(err, &authErr):
		return fmt.Errorf("%s (authentication failed; set PLOTDESK_API_KEY or api_key in config): %w", session.FailureMessage, err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("%s (rate limited; try again in ~%ds): %w", session.FailureMessage, int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("%s (rate limited by the service): %w", session.FailureMessage, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("%s (the service rejected the request; compare the file against 'plotdesk categories'): %w", session.FailureMessage, err)
	case errors.As(err, &sErr):
		return fmt.Errorf("%s (the service reported an internal error): %w", session.FailureMessage, err)
	default:
		return fmt.Errorf("%s: %w", session.FailureMessage, err)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}
