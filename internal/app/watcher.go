package app

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/flickerlabs/flicker-relay/internal/config"
)

// reloadDebounce absorbs the bursts of write events editors and atomic
// saves produce for a single logical change.
const reloadDebounce = 200 * time.Millisecond

// watchConfig reloads the configuration snapshot whenever the config file
// changes on disk. The watch is on the parent directory because atomic
// saves replace the file inode. Returns a stop function.
func watchConfig(configPath string, st *state) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(configPath)
	if errAdd := watcher.Add(dir); errAdd != nil {
		_ = watcher.Close()
		return nil, errAdd
	}

	target := filepath.Clean(configPath)
	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		var timerCh <-chan time.Time
		for {
			select {
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
					timerCh = timer.C
				} else {
					timer.Reset(reloadDebounce)
				}
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(errWatch).Warn("config watcher error")
			case <-timerCh:
				reloadConfig(configPath, st)
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}

// reloadConfig swaps in a freshly parsed snapshot. A parse or validation
// failure keeps the previous snapshot, so a half-written file never takes
// down a running relay.
func reloadConfig(configPath string, st *state) {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		log.WithError(errLoad).Warn("config reload failed, keeping previous settings")
		return
	}
	prev := st.load()
	if prev != nil {
		cfg.Port = prev.Port
		if strings.TrimSpace(cfg.Provider.APIKey) == "" {
			cfg.Provider.APIKey = prev.Provider.APIKey
		}
	}
	st.cfg.Store(cfg)
	log.WithFields(log.Fields{
		"max_questions":       cfg.Limits.MaxQuestions,
		"requests_per_minute": cfg.RateLimit.RequestsPerMinute,
	}).Info("configuration reloaded")
}
