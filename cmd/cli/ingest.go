package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
	"github.com/himanishpuri/landmark/pkg/logger"
	"github.com/himanishpuri/landmark/pkg/utils"
)

type failedFile struct {
	Path string
	Err  error
}

type ingestSummary struct {
	Added  int
	IDs    []int
	Failed []failedFile
}

// ingestFiles fingerprints files on a worker pool and ingests them one at a
// time in input order, so IDs do not depend on scheduling.
func ingestFiles(ctx context.Context, svc landmark.Service, files []string, workers int, progress bool) ingestSummary {
	log := logger.GetLogger()

	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 2)
	}

	var p *mpb.Progress
	var bar *mpb.Bar
	if progress {
		p = mpb.New(mpb.WithWidth(64))
		bar = p.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("Ingesting: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	type job struct {
		idx  int
		path string
	}
	type result struct {
		idx int
		fps []fingerprint.Fingerprint
		err error
	}

	jobs := make(chan job, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fps, err := svc.FingerprintFile(ctx, j.path)
				results <- result{idx: j.idx, fps: fps, err: err}
			}
		}()
	}

	for i, f := range files {
		jobs <- job{idx: i, path: f}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var summary ingestSummary
	pending := make(map[int]result)
	next := 0
	for r := range results {
		pending[r.idx] = r
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			path := files[next]
			next++

			if r.err == nil {
				var id int
				id, r.err = svc.IngestFingerprints(ctx, utils.TrackName(path), r.fps)
				if r.err == nil {
					summary.Added++
					summary.IDs = append(summary.IDs, id)
				}
			}
			if r.err != nil {
				log.Warnf("Skipping %s: %v", path, r.err)
				summary.Failed = append(summary.Failed, failedFile{Path: path, Err: r.err})
			}
			if bar != nil {
				bar.Increment()
			}
		}
	}

	if p != nil {
		p.Wait()
	}
	return summary
}

// copyCatalog loads every track from src and replaces dst with it.
func copyCatalog(ctx context.Context, src, dst landmark.Store) (int, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := dst.Save(ctx, snap); err != nil {
		return 0, err
	}
	return len(snap.Names), nil
}

// pathSize returns the size of a file, or the total size of a directory.
func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total, err
}
