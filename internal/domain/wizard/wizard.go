package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// ErrStepOutOfRange is returned for a focus or advance request the gating
// rules do not allow. The wizard state is unchanged.
var ErrStepOutOfRange = errors.New("step out of range")

// Mode selects what submitting the wizard does.
type Mode int

const (
	// ModeLaunch starts a stopped server.
	ModeLaunch Mode = iota
	// ModeReconfigure restarts a running server with the new config.
	ModeReconfigure
)

// ConfigStore is the pending configuration the wizard edits.
type ConfigStore interface {
	Read(ctx context.Context) (types.ConfigAndValidity, error)
	Write(ctx context.Context, partial types.PendingConfig) (types.ConfigAndValidity, error)
	Launch(ctx context.Context) error
	Reconfigure(ctx context.Context) error
}

// Wizard walks the configuration steps. Its only own state is the current
// step index; the step list is recomputed from the last config the store
// returned. Step i is focused when i == Current(); Current() == StepCount()
// means every step is done and submit is available.
type Wizard struct {
	store ConfigStore
	mode  Mode

	mu      sync.Mutex
	current int
	config  types.ConfigAndValidity
}

// New returns a wizard at the first step. Call Load before use.
func New(store ConfigStore, mode Mode) *Wizard {
	return &Wizard{store: store, mode: mode}
}

// Mode returns the submit mode.
func (w *Wizard) Mode() Mode {
	return w.mode
}

// Load reads the pending config from the store.
func (w *Wizard) Load(ctx context.Context) error {
	v, err := w.store.Read(ctx)
	if err != nil {
		return err
	}
	w.adopt(v)
	return nil
}

// Config returns the last config seen by the wizard.
func (w *Wizard) Config() types.ConfigAndValidity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Steps returns the current step plan.
func (w *Wizard) Steps() []Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Plan(w.config.Config)
}

// StepCount returns the number of steps in the current plan.
func (w *Wizard) StepCount() int {
	return len(w.Steps())
}

// Current returns the current step index.
func (w *Wizard) Current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Focused returns the focused step, or false once every step is done.
func (w *Wizard) Focused() (Step, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := Plan(w.config.Config)
	if w.current >= len(steps) {
		return "", false
	}
	return steps[w.current], true
}

// Done reports whether every step has been completed.
func (w *Wizard) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current == len(Plan(w.config.Config))
}

// CanSubmit reports whether a submit control should be enabled: every step
// is done and the server last reported the config as valid.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current == len(Plan(w.config.Config)) && w.config.IsValid
}

// RequestFocus moves focus back to step i. Only the current step and steps
// before it may take focus.
func (w *Wizard) RequestFocus(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i > w.current {
		return fmt.Errorf("%w: focus %d, current %d", ErrStepOutOfRange, i, w.current)
	}
	w.current = i
	return nil
}

// NextStep advances by one step.
func (w *Wizard) NextStep() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current >= len(Plan(w.config.Config)) {
		return fmt.Errorf("%w: already at step %d", ErrStepOutOfRange, w.current)
	}
	w.current++
	return nil
}

// Update writes a partial config through the store.
func (w *Wizard) Update(ctx context.Context, partial types.PendingConfig) error {
	v, err := w.store.Write(ctx, partial)
	if err != nil {
		return err
	}
	w.adopt(v)
	return nil
}

// SetMachineType selects the machine size.
func (w *Wizard) SetMachineType(ctx context.Context, machineType string) error {
	return w.Update(ctx, types.PendingConfig{MachineType: types.Ptr(machineType)})
}

// SetServerVersion selects the game version. When guess is true the server
// may pick the version recorded in the world instead.
func (w *Wizard) SetServerVersion(ctx context.Context, version string, guess bool) error {
	return w.Update(ctx, types.PendingConfig{
		ServerVersion:      types.Ptr(version),
		GuessServerVersion: types.Ptr(guess),
	})
}

// SetWorldSource switches between backups and a new world. Changing the
// source resets the branch-specific fields to their defaults.
func (w *Wizard) SetWorldSource(ctx context.Context, source string) error {
	if source == WorldSource(w.Config().Config) {
		return w.Update(ctx, types.PendingConfig{WorldSource: types.Ptr(source)})
	}
	return w.Update(ctx, BranchReset(source))
}

// ChooseBackup selects a saved world and generation.
func (w *Wizard) ChooseBackup(ctx context.Context, worldName, generation string) error {
	if generation == "" {
		generation = types.LatestGeneration
	}
	return w.Update(ctx, types.PendingConfig{
		WorldName: types.Ptr(worldName),
		BackupGen: types.Ptr(generation),
	})
}

// SetWorldName names the world to generate.
func (w *Wizard) SetWorldName(ctx context.Context, worldName string) error {
	return w.Update(ctx, types.PendingConfig{WorldName: types.Ptr(worldName)})
}

// ConfigureWorld sets generation parameters of a new world.
func (w *Wizard) ConfigureWorld(ctx context.Context, levelType, seed string) error {
	return w.Update(ctx, types.PendingConfig{
		LevelType: types.Ptr(levelType),
		Seed:      types.Ptr(seed),
	})
}

// Submit launches or reconfigures according to the wizard's mode. It does
// not check CanSubmit; the server validates.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.mode == ModeReconfigure {
		return w.store.Reconfigure(ctx)
	}
	return w.store.Launch(ctx)
}

// adopt installs a config from the store and keeps the current step within
// the (possibly shorter) new plan.
func (w *Wizard) adopt(v types.ConfigAndValidity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = v
	if n := len(Plan(v.Config)); w.current > n {
		w.current = n
	}
}
