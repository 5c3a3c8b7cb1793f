// Command trajgen drives a physics engine over TCP to generate a directory
// of trial trajectory files. Scene and trial content come from a JSON
// command script; noise injection is configured by a separate JSON params
// file. Rerunning with the same output directory resumes an interrupted run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/simdata/trajgen/internal/config"
	"github.com/simdata/trajgen/internal/engine"
	"github.com/simdata/trajgen/internal/noise"
	"github.com/simdata/trajgen/internal/trial"
	"github.com/simdata/trajgen/internal/version"
)

// script is the on-disk scenario format: arrays of raw engine commands.
// Scene commands go out once per run, trial commands once per trial,
// request commands are appended to every trial's init batch, and per-frame
// commands are sent on every step.
type script struct {
	Scene    []json.RawMessage `json:"scene"`
	Trial    []json.RawMessage `json:"trial"`
	Requests []json.RawMessage `json:"requests"`
	PerFrame []json.RawMessage `json:"per_frame"`
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func rawCommands(msgs []json.RawMessage) ([]engine.Command, error) {
	cmds := make([]engine.Command, 0, len(msgs))
	for _, m := range msgs {
		var fields map[string]any
		if err := json.Unmarshal(m, &fields); err != nil {
			return nil, err
		}
		typ, ok := fields["$type"].(string)
		if !ok {
			return nil, fmt.Errorf("command missing $type: %s", string(m))
		}
		delete(fields, "$type")
		cmds = append(cmds, engine.Raw{Type: typ, Fields: fields})
	}
	return cmds, nil
}

// defaultRequests asks the engine for everything the recorder consumes,
// on every step.
func defaultRequests() []engine.Command {
	always := func(typ string) engine.Command {
		return engine.Raw{Type: typ, Fields: map[string]any{"frequency": "always"}}
	}
	return []engine.Command{
		always("send_transforms"),
		always("send_rigidbodies"),
		always("send_static_rigidbodies"),
		always("send_collisions"),
		always("send_segmentation_colors"),
	}
}

// scriptedScenario adapts a command script to the trial capability
// interfaces.
type scriptedScenario struct {
	scene    []engine.Command
	trialCmd []engine.Command
	requests []engine.Command
	perFrame []engine.Command
}

func newScriptedScenario(s *script) (*scriptedScenario, error) {
	sc := &scriptedScenario{}
	var err error
	if sc.scene, err = rawCommands(s.Scene); err != nil {
		return nil, fmt.Errorf("scene commands: %w", err)
	}
	if sc.trialCmd, err = rawCommands(s.Trial); err != nil {
		return nil, fmt.Errorf("trial commands: %w", err)
	}
	if sc.requests, err = rawCommands(s.Requests); err != nil {
		return nil, fmt.Errorf("request commands: %w", err)
	}
	if sc.perFrame, err = rawCommands(s.PerFrame); err != nil {
		return nil, fmt.Errorf("per-frame commands: %w", err)
	}
	if len(sc.trialCmd) == 0 {
		return nil, fmt.Errorf("script has no trial commands")
	}
	if len(sc.requests) == 0 {
		sc.requests = defaultRequests()
	}
	return sc, nil
}

func (s *scriptedScenario) SceneInitCommands() []engine.Command { return s.scene }

func (s *scriptedScenario) TrialInitCommands(trialIndex int, seq *noise.Sequence) []engine.Command {
	return s.trialCmd
}

func (s *scriptedScenario) FrameDataRequestCommands() []engine.Command { return s.requests }

func (s *scriptedScenario) PerFrameCommands(resp *engine.Response, frame int) []engine.Command {
	return s.perFrame
}

// ModelNames pulls the "name" field out of any add_object commands in the
// trial script so the static section can record what was spawned.
func (s *scriptedScenario) ModelNames() []string {
	var names []string
	for _, c := range s.trialCmd {
		raw, ok := c.(engine.Raw)
		if !ok || raw.Type != "add_object" {
			continue
		}
		if name, ok := raw.Fields["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

func main() {
	configPath := flag.String("config", "", "JSON run config file; explicit flags override it")
	engineAddr := flag.String("engine", "", "Physics engine address (host:port)")
	outDir := flag.String("out", "", "Output directory for trial files")
	scriptPath := flag.String("script", "", "JSON command script for the scenario")
	trials := flag.Int("trials", -1, "Total number of trials in the run")
	maxFrames := flag.Int("max-frames", 0, "Frame cap per trial")
	seed := flag.Uint64("seed", 0, "Base seed for noise draws")
	noisePath := flag.String("noise", "", "JSON noise params file (empty disables noise)")
	timeout := flag.Duration("timeout", 0, "Per-exchange engine timeout")
	commandLog := flag.String("command-log", "", "Append every command batch to this file")
	unloadEvery := flag.Int("unload-every", -1, "Unload asset bundles before every Nth trial (0 disables)")
	provenance := flag.String("provenance", "", "Provenance string recorded in each trial file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("trajgen %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	// Flags given on the command line win; everything else falls back to
	// the config file, then to the built-in defaults.
	if *engineAddr == "" {
		*engineAddr = cfg.GetEngineAddr()
	}
	if *outDir == "" {
		*outDir = config.GetString(cfg.OutputDir)
	}
	if *scriptPath == "" {
		*scriptPath = config.GetString(cfg.ScriptPath)
	}
	if *trials < 0 {
		*trials = cfg.GetTrials()
	}
	if *maxFrames <= 0 {
		*maxFrames = cfg.GetMaxFrames()
	}
	if *seed == 0 {
		*seed = cfg.GetBaseSeed()
	}
	if *noisePath == "" {
		*noisePath = config.GetString(cfg.NoisePath)
	}
	if *timeout <= 0 {
		*timeout = cfg.GetTimeout()
	}
	if *commandLog == "" {
		*commandLog = config.GetString(cfg.CommandLog)
	}
	if *unloadEvery < 0 {
		*unloadEvery = cfg.GetUnloadAssetsEvery()
	}
	if *provenance == "" {
		*provenance = cfg.GetProvenance()
	}

	if *outDir == "" || *scriptPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	sc, err := loadScript(*scriptPath)
	if err != nil {
		log.Fatalf("load script: %v", err)
	}
	scenario, err := newScriptedScenario(sc)
	if err != nil {
		log.Fatalf("script: %v", err)
	}

	var params *noise.Params
	if *noisePath != "" {
		params, err = noise.LoadParams(*noisePath)
		if err != nil {
			log.Fatalf("load noise params: %v", err)
		}
	}

	ch, err := engine.Dial(*engineAddr, *timeout)
	if err != nil {
		log.Fatalf("connect to engine at %s: %v", *engineAddr, err)
	}
	defer ch.Close()

	var channel engine.Channel = ch
	if *commandLog != "" {
		cl, err := engine.OpenCommandLog(*commandLog)
		if err != nil {
			log.Fatalf("open command log: %v", err)
		}
		defer cl.Close()
		channel = engine.NewLoggedChannel(ch, cl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := &trial.Scheduler{
		Channel:           channel,
		Scenario:          trial.Scenario{Scene: scenario, Init: scenario, Frames: scenario},
		Noise:             params,
		MaxFrames:         *maxFrames,
		BaseSeed:          *seed,
		Provenance:        *provenance,
		OutputDir:         *outDir,
		UnloadAssetsEvery: *unloadEvery,
	}
	if err := sched.Run(ctx, *trials); err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Printf("run complete: %d trials in %s", *trials, *outDir)
}
