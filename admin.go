package orbit

import (
	"context"
	"errors"

	"github.com/xraph/orbit/fee"
	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/types"
)

// Initialize writes the global configuration once. It requires the
// authority of the proposed admin and fails ErrAlreadyInitialized on any
// later call.
func (e *Engine) Initialize(ctx context.Context, admin, wallet types.Address, settings platform.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, _ := e.instant()
	u := e.begin()

	if _, err := u.config(ctx); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, ErrNotInitialized) {
		return err
	}

	if err := e.authorize(ctx, admin); err != nil {
		return err
	}

	cfg, err := platform.New(admin, wallet, settings)
	if err != nil {
		return err
	}
	cfg.Entity = types.NewEntityAt(at)
	if err := u.putConfig(cfg, at); err != nil {
		return err
	}
	if err := u.commit(ctx); err != nil {
		return err
	}

	e.logger.Info("orbit initialized",
		"admin", cfg.Admin,
		"platform_wallet", cfg.PlatformWallet,
		"fee_bps", cfg.FeeBps,
		"grace_period", cfg.GracePeriod,
	)
	return nil
}

// updateConfig loads the config, requires the admin and applies fn.
func (e *Engine) updateConfig(ctx context.Context, fn func(cfg *platform.Config) error) (*platform.Config, error) {
	at, _ := e.instant()
	u := e.begin()

	cfg, err := u.config(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, cfg.Admin); err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := u.putConfig(cfg, at); err != nil {
		return nil, err
	}
	if err := u.commit(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetPlatformWallet changes where fees are paid. Existing streams keep the
// wallet they were created with.
func (e *Engine) SetPlatformWallet(ctx context.Context, wallet types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old types.Address
	if _, err := e.updateConfig(ctx, func(cfg *platform.Config) error {
		old, cfg.PlatformWallet = cfg.PlatformWallet, wallet
		return nil
	}); err != nil {
		return err
	}

	e.plugins.EmitPlatformWalletUpdated(ctx, old, wallet)
	return nil
}

// SetPlatformFee changes the fee applied to every future payout.
func (e *Engine) SetPlatformFee(ctx context.Context, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old uint32
	if _, err := e.updateConfig(ctx, func(cfg *platform.Config) error {
		if err := fee.ValidateBps(bps); err != nil {
			return ValidationError{Field: "fee_bps", Message: "must be within 0-1000", Err: err}
		}
		old, cfg.FeeBps = cfg.FeeBps, bps
		return nil
	}); err != nil {
		return err
	}

	e.logger.Info("platform fee updated", "old_bps", old, "new_bps", bps)
	e.plugins.EmitFeeUpdated(ctx, old, bps)
	return nil
}

// SetGracePeriod changes the renewal window after a stream's end.
func (e *Engine) SetGracePeriod(ctx context.Context, seconds uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old uint64
	if _, err := e.updateConfig(ctx, func(cfg *platform.Config) error {
		old, cfg.GracePeriod = cfg.GracePeriod, seconds
		return nil
	}); err != nil {
		return err
	}

	e.plugins.EmitGracePeriodUpdated(ctx, old, seconds)
	return nil
}

// SetAdmin hands admin rights to another identity.
func (e *Engine) SetAdmin(ctx context.Context, admin types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var old types.Address
	if _, err := e.updateConfig(ctx, func(cfg *platform.Config) error {
		old, cfg.Admin = cfg.Admin, admin
		return nil
	}); err != nil {
		return err
	}

	e.logger.Info("admin updated", "old_admin", old, "new_admin", admin)
	e.plugins.EmitAdminUpdated(ctx, old, admin)
	return nil
}
