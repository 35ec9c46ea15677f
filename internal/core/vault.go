package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/org/envvault/internal/crypto"
	"github.com/org/envvault/internal/secret"
	"github.com/org/envvault/internal/shellsync"
	"github.com/org/envvault/internal/storage"
	"github.com/org/envvault/pkg/models"
)

// Options locates the vault's persistent state.
type Options struct {
	Storage   storage.Options
	KeyFile   string
	ShellPath string
	// Home and Profiles drive InstallShellHook; Home defaults to the user's
	// home directory.
	Home     string
	Profiles []string
}

// Vault is the operation surface used by the API. It is the only layer that
// turns errors into empty results or false, logging the cause.
type Vault struct {
	opts Options

	mu     sync.Mutex
	store  storage.SecretStore
	seal   *SealManager
	engine *secret.Engine
	shell  *shellsync.Manager
}

// NewVault returns an uninitialised Vault. Call Init before anything else.
func NewVault(opts Options) *Vault {
	return &Vault{opts: opts, seal: NewSealManager()}
}

// Init opens the store, loads the root key and prepares shell sync. It is a
// no-op once it has succeeded. Every failure wraps storage.ErrUnavailable.
func (v *Vault) Init(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine != nil {
		return nil
	}

	store, err := storage.Open(ctx, v.opts.Storage)
	if err != nil {
		storageAvailable.Set(0)
		return err
	}
	if err := v.unseal(ctx, store); err != nil {
		store.Close()
		storageAvailable.Set(0)
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	engine := secret.NewEngine(store, v.seal)
	shell, err := shellsync.NewManager(v.opts.ShellPath, engine)
	if err != nil {
		store.Close()
		v.seal.Seal()
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	v.store, v.engine, v.shell = store, engine, shell
	storageAvailable.Set(1)
	refreshGauge(ctx, engine)
	log.Info().Str("driver", v.driver()).Str("shell_file", shell.Path()).Msg("vault opened")
	return nil
}

func (v *Vault) unseal(ctx context.Context, store storage.SecretStore) error {
	count, err := store.CountSecrets(ctx)
	if err != nil {
		return err
	}
	if _, err := os.Stat(v.opts.KeyFile); errors.Is(err, os.ErrNotExist) && count > 0 {
		return fmt.Errorf("root key %s is missing but the store holds %d secrets", v.opts.KeyFile, count)
	}
	key, created, err := crypto.LoadOrCreateRootKey(v.opts.KeyFile)
	if err != nil {
		return err
	}
	defer zeroBytes(key)
	if created {
		log.Info().Str("path", v.opts.KeyFile).Msg("generated new root key")
	}
	if err := v.seal.UnsealWithRootKey(key); err != nil {
		return err
	}

	// A key that cannot open existing records belongs to another store.
	recs, err := store.ListSecrets(ctx)
	if err != nil {
		v.seal.Seal()
		return err
	}
	if len(recs) > 0 {
		if _, err := v.seal.OpenValue(recs[0].Ciphertext, recs[0].Nonce); err != nil {
			v.seal.Seal()
			return fmt.Errorf("root key %s does not match the store: %w", v.opts.KeyFile, err)
		}
	}
	return nil
}

// Ready reports whether Init has succeeded.
func (v *Vault) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine != nil
}

// Ping checks that the store still answers.
func (v *Vault) Ping(ctx context.Context) error {
	v.mu.Lock()
	store := v.store
	v.mu.Unlock()
	if store == nil {
		return storage.ErrUnavailable
	}
	return store.Ping(ctx)
}

// Close seals the vault and closes the store.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store != nil {
		v.store.Close()
	}
	v.seal.Seal()
	v.store, v.engine, v.shell = nil, nil, nil
	storageAvailable.Set(0)
}

func (v *Vault) parts() (*secret.Engine, *shellsync.Manager) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine, v.shell
}

func (v *Vault) driver() string {
	if v.opts.Storage.Driver == "" {
		return storage.DriverSQLite
	}
	return v.opts.Storage.Driver
}

// SearchVault returns masked secrets whose key contains query.
func (v *Vault) SearchVault(ctx context.Context, query string) []models.SecretItem {
	engine, _ := v.parts()
	if engine == nil {
		return []models.SecretItem{}
	}
	items, err := engine.Search(ctx, query)
	observe("search", err)
	if err != nil {
		log.Error().Err(err).Msg("search failed")
		return []models.SecretItem{}
	}
	return items
}

// GetAllSecrets returns every secret, masked, in insertion order.
func (v *Vault) GetAllSecrets(ctx context.Context) []models.SecretItem {
	return v.SearchVault(ctx, "")
}

// GetFullSecret returns the cleartext value of the secret with the given id.
func (v *Vault) GetFullSecret(ctx context.Context, id int64) (string, bool) {
	engine, _ := v.parts()
	if engine == nil {
		return "", false
	}
	s, err := engine.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		observe("get_full", nil)
		return "", false
	}
	observe("get_full", err)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("reading secret failed")
		return "", false
	}
	return s.Value, true
}

// AddSecret stores value under key, replacing any existing value for key.
func (v *Vault) AddSecret(ctx context.Context, key, value string) bool {
	engine, _ := v.parts()
	if engine == nil {
		return false
	}
	item, created, err := engine.Add(ctx, key, value)
	observe("add", err)
	if err != nil {
		logMutationError(err).Str("key", key).Msg("adding secret failed")
		return false
	}
	log.Info().Int64("id", item.ID).Str("key", key).Bool("created", created).Msg("secret stored")
	v.afterMutation(ctx)
	return true
}

// UpdateSecret replaces the value of the secret with the given id.
func (v *Vault) UpdateSecret(ctx context.Context, id int64, value string) bool {
	engine, _ := v.parts()
	if engine == nil {
		return false
	}
	err := engine.Update(ctx, id, value)
	if errors.Is(err, storage.ErrNotFound) {
		observe("update", nil)
		return false
	}
	observe("update", err)
	if err != nil {
		logMutationError(err).Int64("id", id).Msg("updating secret failed")
		return false
	}
	log.Info().Int64("id", id).Msg("secret updated")
	v.afterMutation(ctx)
	return true
}

// DeleteSecret removes the secret with the given id and reports whether it
// existed. Nothing is synced when it did not.
func (v *Vault) DeleteSecret(ctx context.Context, id int64) bool {
	engine, _ := v.parts()
	if engine == nil {
		return false
	}
	removed, err := engine.Delete(ctx, id)
	observe("delete", err)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("deleting secret failed")
		return false
	}
	if removed {
		log.Info().Int64("id", id).Msg("secret deleted")
		v.afterMutation(ctx)
	}
	return removed
}

// ImportEnv adds every pair parsed from .env text and returns how many were
// applied.
func (v *Vault) ImportEnv(ctx context.Context, text string) int {
	return v.ImportEnvDetailed(ctx, text).Applied
}

// ImportEnvDetailed is ImportEnv with skipped and rejected line counts.
func (v *Vault) ImportEnvDetailed(ctx context.Context, text string) secret.ImportResult {
	engine, _ := v.parts()
	if engine == nil {
		return secret.ImportResult{}
	}
	res, err := engine.ImportEnv(ctx, text)
	observe("import", err)
	if err != nil {
		log.Error().Err(err).Int("applied", res.Applied).Msg("import stopped early")
	}
	log.Info().
		Int("applied", res.Applied).
		Int("skipped", res.Skipped).
		Int("rejected", res.Rejected).
		Msg("env imported")
	if res.Applied > 0 {
		v.afterMutation(ctx)
	}
	return res
}

// ExportEnv renders the whole vault as .env text.
func (v *Vault) ExportEnv(ctx context.Context) string {
	engine, _ := v.parts()
	if engine == nil {
		return ""
	}
	out, err := engine.ExportEnv(ctx)
	observe("export", err)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		return ""
	}
	return out
}

// SyncToShell rewrites the shell file from the vault. A failure leaves the
// vault untouched.
func (v *Vault) SyncToShell(ctx context.Context) bool {
	_, shell := v.parts()
	if shell == nil {
		return false
	}
	if err := shell.Sync(ctx); err != nil {
		shellSyncTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("path", shell.Path()).Msg("shell sync failed")
		return false
	}
	shellSyncTotal.WithLabelValues("ok").Inc()
	return true
}

// GetEnvvaultPath returns the absolute path of the shell file.
func (v *Vault) GetEnvvaultPath() string {
	_, shell := v.parts()
	if shell != nil {
		return shell.Path()
	}
	path, err := shellsync.ExpandHome(v.shellPath())
	if err != nil {
		log.Error().Err(err).Msg("resolving shell file path failed")
		return ""
	}
	return path
}

func (v *Vault) shellPath() string {
	if v.opts.ShellPath == "" {
		return shellsync.DefaultPath
	}
	return v.opts.ShellPath
}

// InstallShellHook makes the configured shell profiles source the shell
// file. It returns the profiles it changed.
func (v *Vault) InstallShellHook() ([]string, bool) {
	_, shell := v.parts()
	if shell == nil {
		return nil, false
	}
	home := v.opts.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			log.Error().Err(err).Msg("resolving home directory failed")
			return nil, false
		}
	}
	changed, err := shell.InstallHook(home, v.opts.Profiles)
	if err != nil {
		log.Error().Err(err).Msg("installing shell hook failed")
		return changed, false
	}
	for _, p := range changed {
		log.Info().Str("profile", p).Msg("shell hook installed")
	}
	return changed, true
}

// WatchShellFile restores the shell file when it is edited or removed
// outside the vault. It blocks until ctx is done.
func (v *Vault) WatchShellFile(ctx context.Context) error {
	_, shell := v.parts()
	if shell == nil {
		return storage.ErrUnavailable
	}
	return shell.Watch(ctx, shellsync.DefaultDebounce)
}

func (v *Vault) afterMutation(ctx context.Context) {
	v.SyncToShell(ctx)
	if engine, _ := v.parts(); engine != nil {
		refreshGauge(ctx, engine)
	}
}

func refreshGauge(ctx context.Context, engine *secret.Engine) {
	if n, err := engine.Count(ctx); err == nil {
		secretsStored.Set(float64(n))
	}
}

// logMutationError logs rejected input as a warning and anything else as an
// error.
func logMutationError(err error) *zerolog.Event {
	if errors.Is(err, secret.ErrValidation) {
		return log.Warn().Err(err)
	}
	return log.Error().Err(err)
}
