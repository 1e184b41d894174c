package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/location"
)

type packOptions struct {
	name       string
	definition string
	version    string
	author     string
	out        string
	archive    bool
}

func newPackCmd(a *app) *cobra.Command {
	o := packOptions{}
	cmd := &cobra.Command{
		Use:   "pack <module.wasm>",
		Short: "Embed a definition into a compiled module and write it as a bundle.",
		Long: `Embed a definition into a compiled module and write it as a bundle.

Writes <name>.<suffix>.wasm and its .sri sidecar into the output directory.
With --archive the bundle is also zipped into <name>.<suffix>.zip with its own sidecar.`,
		Example: `  distributed pack widgets.wasm --name widgets --definition widgets.yaml --out dist/`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := pack(args[0], a.cfg.Suffix, a.cfg.PayloadExt, o)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.name, "name", "", "canonical module name (required)")
	cmd.Flags().StringVar(&o.definition, "definition", "", "definition file, YAML or JSON")
	cmd.Flags().StringVar(&o.version, "build-version", distributed.Version, "library version the bundle is built against")
	cmd.Flags().StringVar(&o.author, "author", "", "build author")
	cmd.Flags().StringVar(&o.out, "out", ".", "output directory")
	cmd.Flags().BoolVar(&o.archive, "archive", false, "also write a zip archive")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// pack writes the bundle files and returns their paths.
func pack(src, suffix, ext string, o packOptions) ([]string, error) {
	if suffix == "" {
		suffix = location.DefaultSuffix
	}
	if ext == "" {
		ext = location.DefaultPayloadExt
	}

	wasm, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}

	var def any
	if o.definition != "" {
		raw, err := os.ReadFile(o.definition)
		if err != nil {
			return nil, err
		}
		js, err := yaml.YAMLToJSON(raw)
		if err != nil {
			return nil, errors.ParseFailure(errors.PhaseConfig, "definition "+o.definition, err)
		}
		if err := json.Unmarshal(js, &def); err != nil {
			return nil, errors.ParseFailure(errors.PhaseConfig, "definition "+o.definition, err)
		}
	}

	build := &bundle.BuildInfo{Version: o.version, Loader: "distributed " + distributed.Version}
	if o.author != "" {
		build.Author = o.author
	}
	payload, err := bundle.Pack(wasm, def, build)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return nil, err
	}
	payloadPath := filepath.Join(o.out, location.PayloadEntry(o.name, suffix, ext))
	files, err := writeWithSidecar(payloadPath, payload)
	if err != nil {
		return nil, err
	}

	if o.archive {
		zipped, err := bundle.Archive(o.name, suffix, ext, payload)
		if err != nil {
			return nil, err
		}
		zipPath := filepath.Join(o.out, o.name+"."+suffix+location.ArchiveExt)
		more, err := writeWithSidecar(zipPath, zipped)
		if err != nil {
			return nil, err
		}
		files = append(files, more...)
	}
	return files, nil
}

func writeWithSidecar(path string, content []byte) ([]string, error) {
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, err
	}
	sidecar := path + location.SidecarExt
	if err := os.WriteFile(sidecar, []byte(integrity.Digest(content)+"\n"), 0o644); err != nil {
		return nil, err
	}
	return []string{path, sidecar}, nil
}
