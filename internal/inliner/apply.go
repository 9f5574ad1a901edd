package inliner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cascadiacollections/apinline/internal/compiler"
	"github.com/cascadiacollections/apinline/internal/declare"
	"github.com/cascadiacollections/apinline/internal/endpoint"
	"github.com/cascadiacollections/apinline/internal/inject"
)

// HTMLIntegration is the part of the HTML stage the injector needs.
type HTMLIntegration interface {
	TapAlter(name string, fn compiler.AlterFunc)
}

// Apply taps the plugin into c's lifecycle. Data is fetched before every
// build; script injection and declaration output never fail a build.
func (p *Plugin) Apply(c *compiler.Compiler) {
	p.mu.Lock()
	if p.outputDir == "" {
		p.outputDir = c.OutputDir()
	}
	p.mu.Unlock()

	c.Hooks.BeforeRun.Tap(pluginName, func(ctx context.Context, _ *compiler.Compiler) error {
		return p.runPass(ctx, false)
	})
	c.Hooks.WatchRun.Tap(pluginName, func(ctx context.Context, _ *compiler.Compiler) error {
		p.watchMode.Store(true)
		return p.runPass(ctx, true)
	})
	c.Hooks.ThisCompilation.Tap(pluginName, func(comp *compiler.Compilation) {
		p.safely("html injection setup", func() error {
			hooks := comp.HTML()
			if hooks == nil {
				p.logger.Info("html integration unavailable, skipping variable inlining")
				return nil
			}
			p.registerInjector(hooks)
			return nil
		})
	})
	c.Hooks.AfterEmit.Tap(pluginName, func(context.Context, *compiler.Compilation) error {
		p.safely("declaration emit", p.emitDeclarations)
		return nil
	})
}

func (p *Plugin) registerInjector(h HTMLIntegration) {
	h.TapAlter(pluginName, func(doc compiler.HTMLDoc) (compiler.HTMLDoc, error) {
		tags := inject.Tags(p.store.Entries())
		out, err := inject.IntoHead(doc.HTML, tags)
		if errors.Is(err, inject.ErrNoHead) {
			p.logger.Warn("no </head> found, variables not inlined", slog.String("asset", doc.Name))
			return doc, nil
		}
		if err != nil {
			return doc, err
		}
		if len(tags) > 0 {
			p.logger.Debug("inlined variables", slog.String("asset", doc.Name), slog.Int("count", len(tags)))
		}
		doc.HTML = out
		return doc, nil
	})
}

func (p *Plugin) emitDeclarations() error {
	cfg := p.Config()
	if !endpoint.EmitsDeclarations(cfg) {
		return nil
	}
	path := endpoint.DeclarationPath(cfg, p.output())
	wrote, err := declare.Emit(path, p.store.Entries(), p.now())
	if err != nil {
		return err
	}
	if !wrote {
		p.logger.Info("no endpoint data stored, skipping declaration file")
		return nil
	}
	p.logger.Debug("wrote declaration file", slog.String("path", path))
	return nil
}
