package i5validator

import (
	"fmt"
	"log/slog"

	xerrors "github.com/jacoelho/i5validator/errors"
)

type boolOption struct {
	value bool
	set   bool
}

func (o boolOption) resolved(def bool) bool {
	if !o.set {
		return def
	}
	return o.value
}

// Options configures a Validator. The zero value validates in streaming
// mode with XInclude enabled, resolves external resources from the local
// filesystem and http, and does not keep records.
type Options struct {
	resolver    Resolver
	logger      *slog.Logger
	xinclude    boolOption
	resolverSet bool
	keepRecord  bool
}

type resolvedOptions struct {
	resolver   Resolver
	logger     *slog.Logger
	xinclude   bool
	keepRecord bool
}

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// Validate validates options values.
func (o Options) Validate() error {
	_, err := o.withDefaults()
	return err
}

// WithKeepRecord controls whether the findings of valid documents are
// stored in the aggregate report.
func (o Options) WithKeepRecord(value bool) Options {
	o.keepRecord = value
	return o
}

// WithResolver sets the resolver used for external DTD subsets, external
// entities and included documents.
func (o Options) WithResolver(value Resolver) Options {
	o.resolver = value
	o.resolverSet = true
	return o
}

// WithLogger sets the logger findings are written to (nil uses slog.Default).
func (o Options) WithLogger(value *slog.Logger) Options {
	o.logger = value
	return o
}

// WithXInclude controls XInclude processing (enabled by default).
func (o Options) WithXInclude(value bool) Options {
	o.xinclude = boolOption{value: value, set: true}
	return o
}

func (o Options) withDefaults() (resolvedOptions, error) {
	res := resolvedOptions{
		resolver:   o.resolver,
		logger:     o.logger,
		xinclude:   o.xinclude.resolved(true),
		keepRecord: o.keepRecord,
	}
	if o.resolverSet && o.resolver == nil {
		return resolvedOptions{}, fmt.Errorf("%w: nil resolver", xerrors.ErrConfiguration)
	}
	if res.resolver == nil {
		res.resolver = NewOSResolver()
	}
	if res.logger == nil {
		res.logger = slog.Default()
	}
	return res, nil
}
