package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/arena"
	"github.com/freeeve/natural-twenty/api/pkg/combat"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		party     string
		foes      string
		numFights int
		workers   int
		maxRounds int
		seed      int64
		jsonOut   bool
	)

	flag.StringVar(&party, "party", "knight,archer", "Comma-separated character archetypes")
	flag.StringVar(&foes, "foes", "goblin,goblin,orc", "Comma-separated enemy archetypes")
	flag.IntVar(&numFights, "n", 1, "Number of encounters to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel encounters)")
	flag.IntVar(&maxRounds, "max-rounds", arena.DefaultMaxRounds, "Max rounds before calling a draw")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")

	flag.Parse()

	partyNames := splitList(party)
	foeNames := splitList(foes)
	label := fmt.Sprintf("%s vs %s", strings.Join(partyNames, "+"), strings.Join(foeNames, "+"))

	results := make([]*arena.Result, numFights)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	errCount := 0

	for i := 0; i < numFights; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			fightSeed := seed
			if seed != 0 {
				fightSeed = seed + int64(idx)
			}

			cfg := arena.Config{
				Label:     fmt.Sprintf("%s #%d", label, idx+1),
				Party:     partyNames,
				Foes:      foeNames,
				MaxRounds: maxRounds,
				Seed:      fightSeed,
			}

			result, err := arena.Run(cfg)
			if err != nil {
				log.Error().Err(err).Int("encounter", idx+1).Msg("Encounter failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = result
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	if jsonOut {
		printJSON(results, numFights, errCount)
	} else {
		printSummary(results, label, maxRounds, errCount)
	}
}

// splitList turns "knight, archer" into ["knight", "archer"].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printSummary(results []*arena.Result, label string, maxRounds, errCount int) {
	completed := 0
	wins := make(map[string]int)
	totalRounds, totalTurns := 0, 0
	survivorCounts := make(map[string]int)

	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		wins[r.Winner]++
		totalRounds += r.Rounds
		totalTurns += r.Turns
		for _, name := range r.Survivors {
			survivorCounts[name]++
		}
	}

	fmt.Printf("\n%s (%d encounters, max %d rounds):\n", label, completed, maxRounds)
	if errCount > 0 {
		fmt.Printf("  (%d encounters failed)\n", errCount)
	}
	if completed == 0 {
		return
	}

	fmt.Printf("  Party wins: %d   Foe wins: %d   Draws: %d\n",
		wins[string(combat.WinnerPlayer)], wins[string(combat.WinnerEnemy)], wins[string(combat.WinnerDraw)])
	fmt.Printf("  Avg rounds: %.1f   Avg turns: %.1f\n",
		float64(totalRounds)/float64(completed), float64(totalTurns)/float64(completed))

	names := make([]string, 0, len(survivorCounts))
	for name := range survivorCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s survived %d/%d\n", name, survivorCounts[name], completed)
	}
}

func printJSON(results []*arena.Result, total, errCount int) {
	out := struct {
		Total   int             `json:"total"`
		Errors  int             `json:"errors"`
		Results []*arena.Result `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
