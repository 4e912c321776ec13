package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devgianlu/go-ncmdump/ncm"
)

// ConvertResult is the outcome of converting one input file.
type ConvertResult struct {
	Output    string
	Extension string
	Skipped   bool
	Err       error
}

// outputPath derives the destination for an input file: same directory (or
// outputDir when set), same base name, the detected extension.
func outputPath(input, outputDir, ext string) string {
	dir := filepath.Dir(input)
	if len(outputDir) > 0 {
		dir = outputDir
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+"."+ext)
}

// ConvertFile decodes one NCM file and writes the result next to it (or
// into the configured output directory). Existing outputs are skipped
// unless overwriting is enabled.
func (app *App) ConvertFile(path string) ConvertResult {
	return app.convertFileTo(path, app.cfg.OutputDir)
}

func (app *App) convertFileTo(path, outputDir string) ConvertResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConvertResult{Err: fmt.Errorf("failed reading input: %w", err)}
	}

	decoded, err := ncm.NewDecoder(app.log, data).Decode()
	if err != nil {
		return ConvertResult{Err: fmt.Errorf("failed decoding file: %w", err)}
	}

	ext := decoded.Format.Extension()
	out := outputPath(path, outputDir, ext)
	if !app.cfg.Overwrite {
		if _, err := os.Stat(out); err == nil {
			app.log.WithField("path", path).Debugf("output already exists, skipping")
			return ConvertResult{Output: out, Extension: ext, Skipped: true}
		}
	}

	if err := os.WriteFile(out, decoded.Data, 0o644); err != nil {
		return ConvertResult{Err: fmt.Errorf("failed writing output: %w", err)}
	}

	app.log.WithField("path", path).Infof("converted to %s", out)
	return ConvertResult{Output: out, Extension: ext}
}

// collectInputs expands the given files and directories into the list of
// NCM files to convert. Directories are scanned one level deep.
func collectInputs(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed reading input %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed listing directory %s: %w", path, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".ncm") {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}

	return files, nil
}

// ConvertAll fans the inputs out over the worker pool and reports a
// summary. Returns the number of failed inputs.
func (app *App) ConvertAll(inputs []string) int {
	files, err := collectInputs(inputs)
	if err != nil {
		log.WithError(err).Fatal("failed collecting inputs")
	} else if len(files) == 0 {
		log.Warnf("nothing to convert")
		return 0
	}

	log.Infof("converting %d files with %d workers", len(files), app.cfg.Workers)

	results := make([]ConvertResult, len(files))
	start := time.Now()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n := app.decoded.Load() + app.failed.Load()
				if n > 0 {
					log.Infof("converted %d/%d files (%.1f/s)", n, len(files), float64(n)/time.Since(start).Seconds())
				}
			}
		}
	}()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < app.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := app.ConvertFile(files[idx])
				results[idx] = res
				if res.Err != nil {
					app.log.WithField("path", files[idx]).WithError(res.Err).Errorf("failed converting file")
				}
				app.emitResult(files[idx], res)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(done)

	var failed []string
	for i, res := range results {
		if res.Err != nil {
			failed = append(failed, files[i])
		}
	}
	sort.Strings(failed)

	log.Infof("converted %d files in %s, %d failed", len(files)-len(failed), time.Since(start).Round(time.Millisecond), len(failed))
	for _, path := range failed {
		log.Errorf("failed: %s", path)
	}

	return len(failed)
}
