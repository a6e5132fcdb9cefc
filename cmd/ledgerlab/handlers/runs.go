package handlers

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// ListRuns prints the IDs of every archived bootstrap run.
func ListRuns(ctx context.Context, configPath string) error {
	archive, err := openArchive(ctx, configPath)
	if err != nil {
		return err
	}

	runs, err := archive.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, dimStyle.Render("No archived runs"))
		return nil
	}
	for _, id := range runs {
		fmt.Fprintln(stdout, id)
	}
	return nil
}

// FetchRun prints the manifest of a run, or downloads one archived file to
// outPath (stdout when empty). The file's checksum is verified against the
// manifest.
func FetchRun(ctx context.Context, configPath, runID, file, outPath string) error {
	archive, err := openArchive(ctx, configPath)
	if err != nil {
		return err
	}

	if file == "" {
		manifest, err := archive.Manifest(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, titleStyle.Render("Run "+manifest.RunID))
		fmt.Fprintln(stdout, dimStyle.Render("created "+manifest.CreatedAt.Format("2006-01-02 15:04:05 MST")))
		names := make([]string, 0, len(manifest.Files))
		for name := range manifest.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stdout, "  %s  %s\n", nameStyle.Render(name), dimStyle.Render(manifest.Files[name]))
		}
		return nil
	}

	data, err := archive.Fetch(ctx, runID, file)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", outPath, len(data))
	return nil
}

func openArchive(ctx context.Context, configPath string) (RunArchive, error) {
	cfg, err := loadConfig(configPath, TopologyOverrides{})
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, fmt.Errorf("archive is not enabled in the run configuration")
	}
	archive, err := newRunArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}
	return archive, nil
}
