package daemon

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/testground/failpoint/pkg/failpoint"
)

// restore replays the stored configurations, then applies the presets.
// Stored configurations that no longer apply are logged and skipped; an
// invalid preset fails the start.
func (srv *Daemon) restore() error {
	if srv.store != nil {
		stored, err := srv.store.All()
		if err != nil {
			return fmt.Errorf("failed to read stored configurations: %w", err)
		}
		for _, name := range sortedNames(stored) {
			if _, err := srv.catalog.Configure(name, stored[name]); err != nil {
				srv.log.Warnw("skipping stored configuration", "name", name, "err", err)
				continue
			}
			srv.log.Infow("replayed stored configuration", "name", name)
		}
	}

	var merr *multierror.Error
	for _, name := range sortedNames(srv.presets) {
		if _, err := srv.catalog.Configure(name, srv.presets[name]); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("preset %s: %w", name, err))
			continue
		}
		srv.log.Infow("applied preset", "name", name)
	}
	return merr.ErrorOrNil()
}

// persist records the configuration of name so that it survives a restart.
// Turning a fail point off forgets it.
func (srv *Daemon) persist(name string, mode failpoint.Mode, req failpoint.Document) error {
	if srv.store == nil {
		return nil
	}
	if mode == failpoint.Off {
		return srv.store.Delete(name)
	}
	return srv.store.Put(name, req)
}

// checkpoint rewrites stored nTimes configurations with the number of fires
// left, and forgets those that are used up, so that a restart does not re-arm
// them. It runs on shutdown once no more requests are served.
func (srv *Daemon) checkpoint() error {
	if srv.store == nil {
		return nil
	}
	stored, err := srv.store.All()
	if err != nil {
		return fmt.Errorf("failed to read stored configurations: %w", err)
	}

	var merr *multierror.Error
	for _, name := range sortedNames(stored) {
		req := stored[name]
		cfg, err := failpoint.ParseConfig(req)
		if err != nil || cfg.Mode != failpoint.NTimes {
			continue
		}
		fp, ok := srv.catalog.Lookup(name)
		if !ok || fp.Mode() != failpoint.NTimes {
			continue
		}

		left, _ := fp.Diagnostics()["value"].(int32)
		if !fp.IsActive() || left <= 0 {
			srv.log.Infow("forgetting used up configuration", "name", name)
			merr = multierror.Append(merr, srv.store.Delete(name))
			continue
		}
		if left == cfg.Value {
			continue
		}

		next := req.Copy()
		next["mode"] = failpoint.Document{"times": left}
		srv.log.Infow("checkpointing configuration", "name", name, "times", left)
		merr = multierror.Append(merr, srv.store.Put(name, next))
	}
	return merr.ErrorOrNil()
}

func sortedNames(m map[string]failpoint.Document) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
