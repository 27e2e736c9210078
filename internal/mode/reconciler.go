// SPDX-License-Identifier: MIT

// Package mode reconciles the two mutually exclusive presentations of the
// display surface: debug/configuration mode and clean view.
package mode

import (
	"github.com/rs/zerolog"

	"github.com/gjbm2/screen-machine-sub000/internal/params"
)

// ExitFlagKey names the persisted "user explicitly committed out of debug
// mode" flag.
const ExitFlagKey = "debug-exit-committed"

// Decision is the outcome of one reconciliation pass.
type Decision struct {
	// ShouldRedirectToDebug asks the view layer to navigate into debug mode.
	ShouldRedirectToDebug bool
	// ClearedPersistedFlag reports that the explicit-exit flag was dropped
	// because the clean view the user asked for is now rendering.
	ClearedPersistedFlag bool
}

// Reconciler decides between debug mode and clean view. The persisted
// explicit-exit flag always wins: once the user committed out of debug mode,
// no automatic redirect may undo that, even across a full reload.
type Reconciler struct {
	store  Store
	logger zerolog.Logger

	// redirectAttempted guards the redirect-once rule per query state;
	// it resets whenever the query changes.
	redirectAttempted bool
}

// NewReconciler creates a Reconciler over the given persistent store.
func NewReconciler(store Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Reconcile runs one pass for the given parameter snapshot. It reads the
// persisted flag once and writes it at most once.
func (r *Reconciler) Reconcile(p params.DisplayParams) Decision {
	exitCommitted, found, err := r.store.Get(ExitFlagKey)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("event", "mode.store_read_failed").
			Msg("could not read exit flag, treating as unset")
	}
	flagSet := found && exitCommitted == "true"

	if flagSet {
		if !p.DebugMode {
			// The clean view the user asked for is rendering; the flag
			// has served its purpose and is cleared exactly once.
			if err := r.store.Remove(ExitFlagKey); err != nil {
				r.logger.Warn().Err(err).
					Str("event", "mode.flag_clear_failed").
					Msg("could not clear exit flag")
			} else {
				r.logger.Debug().
					Str("event", "mode.flag_cleared").
					Msg("explicit-exit flag cleared")
				return Decision{ClearedPersistedFlag: true}
			}
		}
		return Decision{}
	}

	if p.DebugMode {
		// Debug mode observed: redirection is handled for this query state.
		r.redirectAttempted = true
		return Decision{}
	}

	if !r.redirectAttempted {
		r.redirectAttempted = true
		r.logger.Info().
			Str("event", "mode.redirect_to_debug").
			Msg("bare visit, redirecting into configuration mode")
		return Decision{ShouldRedirectToDebug: true}
	}
	return Decision{}
}

// ResetQueryState clears the redirect-once guard; call it whenever the
// identifier or query string changes.
func (r *Reconciler) ResetQueryState() {
	r.redirectAttempted = false
}

// CommitExitDebug persists the explicit-exit flag. It must run before the
// navigation away from debug mode so a reload immediately afterwards cannot
// bounce back in.
func (r *Reconciler) CommitExitDebug() error {
	if err := r.store.Set(ExitFlagKey, "true"); err != nil {
		return err
	}
	r.logger.Info().
		Str("event", "mode.exit_committed").
		Msg("user committed out of debug mode")
	return nil
}
