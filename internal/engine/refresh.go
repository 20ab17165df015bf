package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rulectl/rulectl/internal/adapter/outbound/mirror"
	"github.com/rulectl/rulectl/internal/domain/ledger"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// Refresh replaces the organization's local mirror with the current
// remote view, discarding any pending ledger entries for it.
//
// Refresh is cancellation-safe: when fetching the remote view fails,
// including by context cancellation, the pre-refresh mirror is restored
// from .backup before the error is returned, so the caller never
// observes a half-written mirror. A failure while promoting .remote or
// removing the staging directories is returned without a restore. Recovery from a prior crash (steps 1-2 below) runs
// unconditionally at the start of every call, so a process killed
// mid-refresh is fully repaired by the next invocation.
func (f *Facade) Refresh(ctx context.Context) (err error) {
	ctx, span := f.startSpan(ctx, "refresh", attribute.String("org", f.org))
	defer span.End()

	defer func() {
		f.recordRefresh(refreshOutcome(ctx, err))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			f.logger.Warn("refresh failed", "org", f.org, "error", err)
		} else {
			f.logger.Info("refresh complete", "org", f.org)
		}
	}()

	orgDir := f.mirror.Dir()
	backupDir := f.mirror.BackupDir()
	remoteDir := f.mirror.RemoteDir()

	if err := os.MkdirAll(orgDir, 0755); err != nil {
		return fmt.Errorf("engine: refresh %s: %w", f.org, err)
	}

	if err := recoverFromPriorCrash(orgDir, backupDir, remoteDir); err != nil {
		return fmt.Errorf("engine: refresh %s: recover: %w", f.org, err)
	}

	if err := stageBackup(orgDir, backupDir, remoteDir); err != nil {
		return fmt.Errorf("engine: refresh %s: stage backup: %w", f.org, err)
	}

	if err := f.fetchRemote(ctx, remoteDir); err != nil {
		restoreErr := restoreFromBackup(orgDir, backupDir, remoteDir)
		if restoreErr != nil {
			return fmt.Errorf("engine: refresh %s: fetch failed (%v) and restore failed: %w", f.org, err, restoreErr)
		}
		return fmt.Errorf("engine: refresh %s: %w", f.org, err)
	}

	if err := promote(remoteDir, orgDir); err != nil {
		return fmt.Errorf("engine: refresh %s: promote: %w", f.org, err)
	}
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("engine: refresh %s: clean backup: %w", f.org, err)
	}
	if err := os.RemoveAll(remoteDir); err != nil {
		return fmt.Errorf("engine: refresh %s: clean remote: %w", f.org, err)
	}

	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		doc.DeleteOrganization(f.org)
		return nil
	}); err != nil {
		return fmt.Errorf("engine: refresh %s: clear ledger: %w", f.org, err)
	}
	// Pending mutations were just discarded, so any push receipts for
	// them are stale too.
	if f.receipts != nil {
		if err := f.receipts.Forget(ctx, f.org); err != nil {
			return fmt.Errorf("engine: refresh %s: clear receipts: %w", f.org, err)
		}
	}
	return nil
}

// refreshOutcome labels a completed Refresh for rulectl_refresh_total:
// "cancelled" when the context was cancelled (regardless of how the
// error surfaced), "error" for any other failure, "ok" otherwise.
func refreshOutcome(ctx context.Context, err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return "cancelled"
	}
	return "error"
}

// recoverFromPriorCrash implements step 2: a leftover .remote is an
// incomplete capture and is discarded; a leftover .backup means the
// previous refresh never finished promoting, so its contents are moved
// back into place.
func recoverFromPriorCrash(orgDir, backupDir, remoteDir string) error {
	if _, err := os.Stat(remoteDir); err == nil {
		if err := os.RemoveAll(remoteDir); err != nil {
			return err
		}
	}
	if _, err := os.Stat(backupDir); err == nil {
		return restoreFromBackup(orgDir, backupDir, remoteDir)
	}
	return nil
}

// stageBackup implements step 3: every existing ruleset directory is
// moved out of orgDir into backupDir, leaving orgDir holding only the
// staging directories while the remote fetch is in flight.
func stageBackup(orgDir, backupDir, remoteDir string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(remoteDir, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(orgDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == filepath.Base(backupDir) || name == filepath.Base(remoteDir) {
			continue
		}
		if err := os.Rename(filepath.Join(orgDir, name), filepath.Join(backupDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// restoreFromBackup implements step 6: move backupDir's contents back
// into orgDir and remove both staging directories, restoring the
// pre-refresh mirror exactly.
func restoreFromBackup(orgDir, backupDir, remoteDir string) error {
	_ = os.RemoveAll(remoteDir)

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(backupDir, e.Name()), filepath.Join(orgDir, e.Name())); err != nil {
			return err
		}
	}
	return os.RemoveAll(backupDir)
}

// promote implements step 5: move every child of remoteDir into
// orgDir, completing the swap to the freshly fetched mirror.
func promote(remoteDir, orgDir string) error {
	entries, err := os.ReadDir(remoteDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(remoteDir, e.Name()), filepath.Join(orgDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// fetchRemote implements step 4: pull every ruleset, its rules, and
// each rule's tags, writing them into the staging mirror rooted at
// remoteDir using the same canonical layout the organization directory
// uses. Each ruleset's rule-and-tags fetch is wrapped in its own
// "engine.refresh.page" span, since it is the unit that pages against
// the remote platform (one GetRulesetRules call plus one GetRuleTags
// call per rule it contains).
func (f *Facade) fetchRemote(ctx context.Context, remoteDir string) error {
	rm, err := mirror.New(remoteDir)
	if err != nil {
		return err
	}

	rulesets, err := f.transport.GetRulesets(ctx, f.org)
	if err != nil {
		return err
	}

	for _, rs := range rulesets {
		if err := ctx.Err(); err != nil {
			return err
		}
		rsID, _ := rs["id"].(string)
		if rsID == "" {
			return fmt.Errorf("engine: ruleset list entry missing id")
		}
		if err := rm.WriteRuleset(rsID, stripRulesetFields(rs)); err != nil {
			return err
		}

		if err := f.fetchRulesetPage(ctx, rm, rsID); err != nil {
			return err
		}
	}
	return nil
}

// fetchRulesetPage fetches one ruleset's rules and their tags, writing
// each into rm.
func (f *Facade) fetchRulesetPage(ctx context.Context, rm *mirror.Mirror, rsID string) error {
	ctx, span := f.startSpan(ctx, "refresh.page", attribute.String("org", f.org), attribute.String("ruleset_id", rsID))
	defer span.End()

	rules, err := f.transport.GetRulesetRules(ctx, f.org, rsID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		ruleID, _ := rule["id"].(string)
		if ruleID == "" {
			err := fmt.Errorf("engine: rule list entry missing id")
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		tags, err := f.transport.GetRuleTags(ctx, f.org, ruleID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if err := rm.WriteRule(rsID, ruleID, stripRuleFields(rule), tags); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

// stripRulesetFields drops the fields a list entry carries that a
// per-resource GET would already have normalized away (see
// transport.GetRulesets's doc comment), so ruleset.json on disk is
// exactly what postRuleset/putRuleset would accept.
func stripRulesetFields(data outbound.JSON) outbound.JSON {
	return stripFields(data, "id", "createdAt", "updatedAt")
}

// stripRuleFields does the same for a rule list entry, additionally
// dropping the rulesetId back-reference the platform embeds in rule
// payloads (implied by the directory layout, not part of the POSTable
// shape).
func stripRuleFields(data outbound.JSON) outbound.JSON {
	return stripFields(data, "id", "createdAt", "updatedAt", "rulesetId")
}

func stripFields(data outbound.JSON, fields ...string) outbound.JSON {
	out := make(outbound.JSON, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}
