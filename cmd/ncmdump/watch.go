package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/devgianlu/go-ncmdump/ncm"
)

// Watch converts existing NCM files in the given directories, then blocks
// watching them for new ones. Files still being copied when the event fires
// show up truncated, those conversions are retried with backoff until the
// file settles.
func (app *App) Watch(dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no directories to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed watching %s: %w", dir, err)
		}

		log.Infof("watching %s", dir)
	}

	app.watched = dirs

	// convert whatever is already there before waiting for events
	if files, err := collectInputs(dirs); err != nil {
		return err
	} else if len(files) > 0 {
		app.ConvertAll(dirs)
	}

	// paths currently being converted, guarded by inflightLock
	inflight := make(map[string]struct{})
	var inflightLock sync.Mutex

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			} else if !strings.EqualFold(filepath.Ext(event.Name), ".ncm") {
				continue
			}

			inflightLock.Lock()
			if _, busy := inflight[event.Name]; busy {
				inflightLock.Unlock()
				continue
			}
			inflight[event.Name] = struct{}{}
			inflightLock.Unlock()

			go func(path string) {
				defer func() {
					inflightLock.Lock()
					delete(inflight, path)
					inflightLock.Unlock()
				}()

				app.convertSettled(path)
			}(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.WithError(err).Errorf("watcher error")
		}
	}
}

// convertSettled converts one watched file, retrying while it still looks
// like a partial copy. Anything other than a truncated or not yet valid
// container is a permanent failure.
func (app *App) convertSettled(path string) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	var res ConvertResult
	err := backoff.Retry(func() error {
		res = app.ConvertFile(path)
		if res.Err == nil {
			return nil
		}

		// a file mid-copy reads as truncated, or as garbage before the
		// header has landed
		if errors.Is(res.Err, ncm.ErrTruncated) || errors.Is(res.Err, ncm.ErrNotNCMFormat) {
			return res.Err
		}

		return backoff.Permanent(res.Err)
	}, policy)
	if err != nil {
		app.log.WithField("path", path).WithError(err).Errorf("failed converting watched file")
		res.Err = err
	}

	app.emitResult(path, res)
	app.notifier.ConversionDone(path, res)
}
