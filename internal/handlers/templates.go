package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// templatePatterns are parsed together; pages are executed by file name
var templatePatterns = []string{"*.tmpl", "components/*.tmpl"}

var templateFuncs = template.FuncMap{
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(s, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
	"formatTime": func(t time.Time) string {
		return t.Format("3:04 PM")
	},
}

// Templates holds the parsed page templates and can reload them in place
type Templates struct {
	fsys fs.FS

	mu   sync.RWMutex
	tmpl *template.Template
}

// LoadTemplates parses every template in fsys
func LoadTemplates(fsys fs.FS) (*Templates, error) {
	t := &Templates{fsys: fsys}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload parses the templates again. The previous set stays active on error.
func (t *Templates) Reload() error {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(t.fsys, templatePatterns...)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	t.mu.Lock()
	t.tmpl = tmpl
	t.mu.Unlock()
	return nil
}

// ExecuteTemplate renders the named template
func (t *Templates) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	t.mu.RLock()
	tmpl := t.tmpl
	t.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// Watch reloads the templates whenever a file under dir changes, until ctx is done
func (t *Templates) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}

	for _, sub := range []string{dir, filepath.Join(dir, "components")} {
		if err := watcher.Add(sub); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", sub, err)
		}
	}

	log.Printf("Watching templates in %s", dir)
	go t.watchLoop(ctx, watcher)
	return nil
}

func (t *Templates) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".tmpl") {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := t.Reload(); err != nil {
					log.Printf("Template reload failed: %v", err)
					return
				}
				log.Println("Templates reloaded")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Template watcher error: %v", err)
		}
	}
}
