package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/generator"
	"github.com/claude/liftlog/internal/models"
)

func main() {
	goal := flag.String("goal", string(models.GoalBuildMuscle), "primary goal")
	objectives := flag.String("objectives", "", "comma-separated secondary objectives (at most two)")
	experience := flag.String("experience", string(models.ExperienceBeginner), "beginner, intermediate or advanced")
	frequency := flag.String("frequency", string(models.FrequencyMid), "2-3, 3-4 or 5+")
	length := flag.Int("length", 45, "session length in minutes: 30, 45 or 60")
	equipment := flag.String("equipment", "bodyweight", "comma-separated available equipment")
	constraints := flag.String("constraints", "", "comma-separated constraints")
	seed := flag.Uint64("seed", 0, "generator seed; 0 picks a random one")
	catalogPath := flag.String("catalog", "", "exercise library YAML (defaults to the built-in library)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	lib, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Error("failed to load exercise catalog", "error", err)
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = rand.Uint64()
	}
	in := models.ProfileInput{
		Goal:          models.Goal(*goal),
		Objectives:    models.ParseObjectives(*objectives),
		Experience:    models.Experience(*experience),
		Frequency:     models.Frequency(*frequency),
		SessionLength: *length,
		Equipment:     models.ParseEquipment(*equipment),
		Constraints:   models.ParseConstraints(*constraints),
	}

	plan, err := generator.NewSeeded(lib, *seed).Generate(0, in)
	if err != nil {
		log.Error("generating plan", "error", err)
		os.Exit(2)
	}
	log.Info("plan generated", "seed", *seed, "days", len(plan.Schedule))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		log.Error("writing plan", "error", err)
		os.Exit(1)
	}
}

func loadCatalog(path string) (*catalog.Library, error) {
	if path == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}
