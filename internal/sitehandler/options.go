package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/podpulse/podpulse/internal/health"
	"github.com/podpulse/podpulse/internal/log"
	"github.com/podpulse/podpulse/internal/podinfo"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger

	// State supplies the live/ready flags and uptime shown on the page.
	State *health.State

	// Info supplies pod identity per render.
	Info func() podinfo.Snapshot

	// TemplateFS holds the landing template (webassets.TemplateFS in prod,
	// an fstest.MapFS in tests).
	TemplateFS fs.FS

	// TemplateFile is the template name inside TemplateFS.
	TemplateFile string // default: "landing.html.tmpl"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.Info == nil {
		o.Info = podinfo.Gather
	}
	if o.TemplateFile == "" {
		o.TemplateFile = "landing.html.tmpl"
	}
}

func (o *Options) validate() error {
	if o.State == nil {
		return fmt.Errorf("%w: State is nil", ErrInvalidOptions)
	}
	if o.TemplateFS == nil {
		return fmt.Errorf("%w: TemplateFS is nil", ErrInvalidOptions)
	}
	// Fail fast on boot if the template got mispackaged.
	if _, err := fs.Stat(o.TemplateFS, o.TemplateFile); err != nil {
		return fmt.Errorf("%w: missing %q in template FS: %v", ErrInvalidOptions, o.TemplateFile, err)
	}
	return nil
}
