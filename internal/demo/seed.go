package demo

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/store"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Position   string            `yaml:"position"`
	Candidates []model.Candidate `yaml:"candidates"`
	Voters     []model.Voter     `yaml:"voters"`
	Votes      []model.VoteCount `yaml:"votes"`
	Activity   []struct {
		At     string `yaml:"at"`
		Voter  string `yaml:"voter"`
		Action string `yaml:"action"`
		Status string `yaml:"status"`
	} `yaml:"activity"`
}

// Seed is the built-in demo election.
type Seed struct {
	Position string
	Data     store.SeedData
}

// LoadSeed parses the embedded election. Activity clock times are placed on
// the day of now.
func LoadSeed(now time.Time) (Seed, error) {
	return parseSeed(seedYAML, now)
}

func parseSeed(raw []byte, now time.Time) (Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Seed{}, fmt.Errorf("demo: parse seed: %w", err)
	}
	if len(f.Candidates) == 0 {
		return Seed{}, fmt.Errorf("demo: seed has no candidates")
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	activity := make([]model.ActivityEntry, 0, len(f.Activity))
	for _, a := range f.Activity {
		clock, err := time.Parse("15:04", a.At)
		if err != nil {
			return Seed{}, fmt.Errorf("demo: activity time %q: %w", a.At, err)
		}
		activity = append(activity, model.ActivityEntry{
			Time:   day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute),
			Voter:  a.Voter,
			Action: a.Action,
			Status: a.Status,
		})
	}

	return Seed{
		Position: f.Position,
		Data: store.SeedData{
			Candidates: f.Candidates,
			Voters:     f.Voters,
			Votes:      f.Votes,
			Activity:   activity,
		},
	}, nil
}
