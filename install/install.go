// Package install builds the procedures that mount registered modules into
// a host.
//
// Installing is idempotent per content hash: the first application of a
// procedure registers the module's directives and components, later
// applications of any procedure for the same content only warn.
package install

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/registry"
)

// Dependencies resolves values provided to the host by name.
type Dependencies interface {
	Dependency(name string) (any, bool)
}

// Issue is an advisory dependency problem.
type Issue struct {
	Dependency string
	Constraint string
	Provided   string
	Problem    string
}

// Installer builds install procedures sharing one ledger.
type Installer struct {
	ledger *Ledger
	deps   Dependencies
	logger *zap.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithDependencies sets the provided dependencies checked at install time.
func WithDependencies(d Dependencies) Option {
	return func(i *Installer) {
		i.deps = d
	}
}

// NewInstaller creates an Installer recording into ledger.
func NewInstaller(ledger *Ledger, opts ...Option) *Installer {
	if ledger == nil {
		ledger = NewLedger()
	}
	i := &Installer{ledger: ledger, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ledger returns the installer's ledger.
func (i *Installer) Ledger() *Ledger {
	return i.ledger
}

// Build returns the install procedure for a registered module.
func (i *Installer) Build(m *registry.Module) *Procedure {
	if m == nil {
		return NoOp
	}
	return &Procedure{installer: i, module: m, key: Key(m)}
}

// Key returns the ledger key of a module: the build package hash, else the
// payload content digest, else the verified SRI digest.
func Key(m *registry.Module) string {
	if b := m.Build(); b != nil && b.Pkg != "" {
		return b.Pkg
	}
	if d := m.Digest(); d != "" {
		return d.String()
	}
	return m.Integrity()
}

// CheckDependencies compares a module's declared dependencies with what the
// host was provided. Problems are advisory.
func (i *Installer) CheckDependencies(m *registry.Module) []Issue {
	var issues []Issue
	for _, dep := range m.Dependencies() {
		issue := Issue{Dependency: dep.Name, Constraint: dep.Constraint}

		var value any
		ok := false
		if i.deps != nil {
			value, ok = i.deps.Dependency(dep.Name)
		}
		if !ok {
			issue.Problem = "not provided"
			issues = append(issues, issue)
			continue
		}
		if dep.Constraint == "" || dep.Constraint == "*" {
			continue
		}
		versioned, ok := value.(distributed.Versioned)
		if !ok {
			continue
		}

		issue.Provided = versioned.Version()
		constraint, err := semver.NewConstraint(dep.Constraint)
		if err != nil {
			issue.Problem = "invalid constraint: " + err.Error()
			issues = append(issues, issue)
			continue
		}
		v, err := semver.NewVersion(issue.Provided)
		if err != nil {
			issue.Problem = "invalid provided version: " + err.Error()
			issues = append(issues, issue)
			continue
		}
		if !constraint.Check(v) {
			issue.Problem = "provided version does not satisfy constraint"
			issues = append(issues, issue)
		}
	}
	return issues
}

// Procedure installs one module into a host.
type Procedure struct {
	installer *Installer
	module    *registry.Module
	key       string
}

// NoOp is the procedure for bundles that export nothing installable.
var NoOp = &Procedure{}

// Module returns the module this procedure installs, nil for NoOp.
func (p *Procedure) Module() *registry.Module {
	return p.module
}

// Key returns the ledger key.
func (p *Procedure) Key() string {
	return p.key
}

// IsNoOp reports whether the procedure does nothing.
func (p *Procedure) IsNoOp() bool {
	return p.module == nil
}

// Install registers the module's directives and components on host unless
// the same content was already installed. A host registration failure
// releases the ledger entry so the procedure can be applied again.
func (p *Procedure) Install(ctx context.Context, host distributed.Host) error {
	if p.IsNoOp() {
		return nil
	}
	if host == nil {
		return errors.InvalidInput(errors.PhaseInstall, "host is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i := p.installer
	log := i.logger.With(
		zap.String("module", p.module.CanonicalName()),
		zap.String("location", p.module.Location()))

	if !i.ledger.Add(p.key) {
		log.Warn("module is already installed", zap.String("key", p.key))
		return nil
	}
	log.Info("installing module")

	for _, issue := range i.CheckDependencies(p.module) {
		log.Warn("module dependency check failed",
			zap.String("dependency", issue.Dependency),
			zap.String("constraint", issue.Constraint),
			zap.String("provided", issue.Provided),
			zap.String("problem", issue.Problem))
	}

	for _, d := range p.module.Directives() {
		if err := host.RegisterDirective(d.Name, d.Export); err != nil {
			i.ledger.Remove(p.key)
			return p.hostErr("directive", d.Name, err)
		}
	}
	for _, c := range p.module.Components() {
		if err := host.RegisterComponent(c.Name, c.Export); err != nil {
			i.ledger.Remove(p.key)
			return p.hostErr("component", c.Name, err)
		}
	}
	return nil
}

func (p *Procedure) hostErr(what, name string, cause error) *errors.Error {
	return errors.New(errors.PhaseInstall, errors.KindLoadFailure).
		Module(p.module.CanonicalName()).
		Location(p.module.Location()).
		Path(what, name).
		Detail("host rejected %s %q", what, name).
		Cause(cause).
		Build()
}
