package trial

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/simdata/trajgen/internal/engine"
	"github.com/simdata/trajgen/internal/noise"
	"github.com/simdata/trajgen/internal/trajstore"
)

const trialSuffix = ".trial"

// TrialFileName returns the output file name for a trial index.
func TrialFileName(index int) string {
	return fmt.Sprintf("%04d%s", index, trialSuffix)
}

// FinalizedIndices scans dir for finalized trial files and returns the set
// of trial indices they cover. Temp files and unrelated entries are ignored.
func FinalizedIndices(dir string) (map[int]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	done := make(map[int]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, trialSuffix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, trialSuffix))
		if err != nil {
			continue
		}
		done[idx] = true
	}
	return done, nil
}

// NextIndex returns the lowest trial index a fresh run would start at:
// one past the highest finalized index, or zero for an empty directory.
func NextIndex(dir string) (int, error) {
	done, err := FinalizedIndices(dir)
	if err != nil {
		return 0, err
	}
	next := 0
	for idx := range done {
		if idx >= next {
			next = idx + 1
		}
	}
	return next, nil
}

// Scheduler runs a sequence of trials into an output directory, skipping
// indices already finalized there. A run killed mid-trial leaves only a temp
// file behind; rerunning the same scheduler picks up exactly the missing
// indices.
type Scheduler struct {
	Channel    engine.Channel
	Scenario   Scenario
	Noise      *noise.Params
	MaxFrames  int
	BaseSeed   uint64
	Provenance string
	OutputDir  string

	// UnloadAssetsEvery inserts an asset-bundle unload before every Nth
	// trial to cap engine memory. Zero disables it.
	UnloadAssetsEvery int

	Log *log.Logger
}

func (s *Scheduler) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log.Default()
}

// Run executes trials [0, totalTrials), skipping any index that already has
// a finalized file in the output directory. Trial failures are logged and
// the run moves on; the joined errors come back at the end. Context
// cancellation and a finalize racing an existing file stop the run
// immediately.
func (s *Scheduler) Run(ctx context.Context, totalTrials int) error {
	logger := s.logger()

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	done, err := FinalizedIndices(s.OutputDir)
	if err != nil {
		return err
	}
	if len(done) > 0 {
		logger.Printf("resuming: %d of %d trials already finalized in %s", len(done), totalTrials, s.OutputDir)
	}

	meta, err := trajstore.OpenMetadata(filepath.Join(s.OutputDir, "metadata.db"))
	if err != nil {
		return fmt.Errorf("open metadata: %w", err)
	}
	defer meta.Close()

	runID := uuid.New().String()
	stimulusPrefix := filepath.Base(s.OutputDir)
	logger.Printf("run %s: %d trials, seed %d", runID, totalTrials, s.BaseSeed)

	if s.Scenario.Scene != nil {
		if cmds := s.Scenario.Scene.SceneInitCommands(); len(cmds) > 0 {
			if _, err := s.Channel.Send(ctx, cmds); err != nil {
				return fmt.Errorf("scene init: %w", err)
			}
		}
	}

	var errs []error
	for i := 0; i < totalTrials; i++ {
		if done[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if lc, ok := s.Channel.(interface{ SetTrial(int) }); ok {
			lc.SetTrial(i)
		}

		var preamble []engine.Command
		if s.UnloadAssetsEvery > 0 && i > 0 && i%s.UnloadAssetsEvery == 0 {
			preamble = append(preamble, engine.UnloadAssetBundles{})
		}

		final := filepath.Join(s.OutputDir, TrialFileName(i))
		tmp := final + ".tmp"
		stimulus := fmt.Sprintf("%s_%04d", stimulusPrefix, i)

		orch := &Orchestrator{
			Channel:    s.Channel,
			Scenario:   s.Scenario,
			Noise:      s.Noise,
			MaxFrames:  s.MaxFrames,
			BaseSeed:   s.BaseSeed,
			Provenance: s.Provenance,
			Log:        s.Log,
		}
		res, err := orch.RunTrial(ctx, i, tmp, final, stimulus, preamble)
		if err != nil {
			if errors.Is(err, trajstore.ErrTargetExists) || ctx.Err() != nil {
				errs = append(errs, err)
				return errors.Join(errs...)
			}
			logger.Printf("trial %04d failed, continuing: %v", i, err)
			errs = append(errs, err)
			continue
		}

		if err := meta.Append(trajstore.TrialSummary{
			RunID:         runID,
			TrialIndex:    res.TrialIndex,
			BaseSeed:      s.BaseSeed,
			Frames:        res.Frames,
			TrialTimeout:  res.TrialTimeout,
			TrialComplete: res.TrialComplete,
			StimulusName:  res.StimulusName,
			OutputPath:    final,
		}); err != nil {
			logger.Printf("trial %04d: metadata append: %v", i, err)
			errs = append(errs, fmt.Errorf("trial %d: metadata: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
