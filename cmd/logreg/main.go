package main

// Estimates how much reaching an eval threshold first raises the chance of
// winning, and whether an early crossing converts better than a late one.
//
// One logistic-regression sample per game, from Sente's perspective.
//
// Features:
//   intercept     : baseline sente win tendency (at the mean crossing ply)
//   first_crossed : 1 if sente first reached the threshold, 0 if gote did
//   ply_scaled    : (crossing_ply - mean_ply) / ply_scale
//   ply_x_first   : ply_scaled * first_crossed
//
// A negative ply_x_first means sente converts early advantages more
// reliably than late ones.

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
)

type sample struct {
	x []float64
	y float64
}

type counts struct {
	total   int
	skipped int
}

func main() {
	input := flag.String("input", "evals.parquet", "input eval parquet file")
	threshold := flag.Int("threshold", 300, "eval threshold for first crossing")
	iter := flag.Int("iter", 300, "gradient descent iterations")
	lr := flag.Float64("lr", 0.05, "learning rate")
	plyScale := flag.Float64("ply-scale", 20, "scale factor for crossing ply")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	filterArg := flag.String("filter", "", `expression selecting games, e.g. 'moves >= 40 && reason == "resign"'`)
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of gradient workers")
	pliesArg := flag.String("plies", "10,20,40,60,80,100", "comma-separated crossing plies to predict at")
	flag.Parse()

	if *iter <= 0 {
		fatal(fmt.Errorf("iter must be > 0"))
	}
	if *lr <= 0 {
		fatal(fmt.Errorf("lr must be > 0"))
	}
	if *plyScale <= 0 {
		fatal(fmt.Errorf("ply-scale must be > 0"))
	}
	if *threshold <= 0 {
		fatal(fmt.Errorf("threshold must be > 0"))
	}
	if *workers <= 0 {
		fatal(fmt.Errorf("workers must be > 0"))
	}
	plies, err := parseIntList(*pliesArg)
	if err != nil {
		fatal(err)
	}
	records, err := match.ReadEvals(*input, *parallel)
	if err != nil {
		fatal(err)
	}
	filter, err := match.CompileFilter(*filterArg)
	if err != nil {
		fatal(err)
	}
	if records, err = filter.Apply(records); err != nil {
		fatal(err)
	}

	samples, cts, meanPly := buildSamples(records, *threshold, *plyScale)
	if len(samples) == 0 {
		fatal(fmt.Errorf("no samples available after filtering (total=%d skipped=%d)", cts.total, cts.skipped))
	}
	weights, loss := fitLogReg(samples, *iter, *lr, *workers)

	fmt.Println("data:")
	fmt.Printf("  input: %s\n", *input)
	fmt.Printf("  threshold: %d\n", *threshold)
	fmt.Printf("  ply-scale: %.0f\n", *plyScale)
	fmt.Printf("  games: %d (skipped=%d)\n", len(samples), cts.skipped)
	fmt.Printf("  mean-crossing-ply: %.1f\n", meanPly)
	fmt.Printf("  workers: %d\n", *workers)
	fmt.Println("model:")
	fmt.Println("  features: intercept, first_crossed, ply_scaled, ply_x_first")
	fmt.Printf("  final-loss: %.6f\n", loss)

	printCoefficients(weights)
	printOddsRatios(weights)
	printPredictedRates(weights, *plyScale, meanPly, plies)
}

// buildSamples keeps decisive games with a threshold crossing.
func buildSamples(records []match.EvalRecord, threshold int, plyScale float64) ([]sample, counts, float64) {
	type accepted struct {
		ply             float64
		senteFirstCross bool
		senteWin        bool
	}
	var games []accepted
	cts := counts{total: len(records)}
	var sumPly float64
	for _, record := range records {
		crossingSide, ply := match.FirstCrossing(record.Evals, threshold)
		resultSide := match.WinnerSide(record.Result)
		if crossingSide == shogi.Neutral || resultSide == shogi.Neutral {
			cts.skipped++
			continue
		}
		games = append(games, accepted{
			ply:             float64(ply),
			senteFirstCross: crossingSide == shogi.Sente,
			senteWin:        resultSide == shogi.Sente,
		})
		sumPly += float64(ply)
	}
	meanPly := 0.0
	if len(games) > 0 {
		meanPly = sumPly / float64(len(games))
	}
	samples := make([]sample, 0, len(games))
	for _, g := range games {
		first := 0.0
		if g.senteFirstCross {
			first = 1.0
		}
		label := 0.0
		if g.senteWin {
			label = 1.0
		}
		plyCentered := (g.ply - meanPly) / plyScale
		samples = append(samples, sample{
			x: []float64{1.0, first, plyCentered, plyCentered * first},
			y: label,
		})
	}
	return samples, cts, meanPly
}

func fitLogReg(samples []sample, iter int, lr float64, workers int) ([]float64, float64) {
	weights := make([]float64, len(samples[0].x))
	if workers > len(samples) {
		workers = len(samples)
	}
	// p = sigmoid(w · x); gradient of the mean log loss is
	// (1/N) * sum_i (p_i - y_i) * x_i.
	for i := 0; i < iter; i++ {
		grad := make([]float64, len(weights))
		if workers <= 1 {
			for _, s := range samples {
				p := sigmoid(dot(weights, s.x))
				err := p - s.y
				for j := range grad {
					grad[j] += err * s.x[j]
				}
			}
		} else {
			partials := make([][]float64, workers)
			for w := 0; w < workers; w++ {
				partials[w] = make([]float64, len(weights))
			}
			var wg sync.WaitGroup
			chunk := (len(samples) + workers - 1) / workers
			for w := 0; w < workers; w++ {
				start := w * chunk
				end := start + chunk
				if start >= len(samples) {
					break
				}
				if end > len(samples) {
					end = len(samples)
				}
				wg.Add(1)
				go func(idx, from, to int) {
					defer wg.Done()
					localGrad := partials[idx]
					for _, s := range samples[from:to] {
						p := sigmoid(dot(weights, s.x))
						err := p - s.y
						for j := range localGrad {
							localGrad[j] += err * s.x[j]
						}
					}
				}(w, start, end)
			}
			wg.Wait()
			for w := 0; w < workers; w++ {
				localGrad := partials[w]
				for j := range grad {
					grad[j] += localGrad[j]
				}
			}
		}
		scale := lr / float64(len(samples))
		for j := range weights {
			weights[j] -= grad[j] * scale
		}
	}
	var totalLoss float64
	for _, s := range samples {
		p := sigmoid(dot(weights, s.x))
		if p < 1e-15 {
			p = 1e-15
		}
		if p > 1-1e-15 {
			p = 1 - 1e-15
		}
		totalLoss += -s.y*math.Log(p) - (1-s.y)*math.Log(1-p)
	}
	finalLoss := totalLoss / float64(len(samples))
	return weights, finalLoss
}

func printCoefficients(weights []float64) {
	labels := []string{"intercept", "first_crossed", "ply_scaled", "ply_x_first"}
	fmt.Println("coefficients (log-odds):")
	for i, w := range weights {
		fmt.Printf("  %s = %.6f\n", labels[i], w)
	}
}

func printOddsRatios(weights []float64) {
	labels := []string{"first_crossed", "ply_scaled", "ply_x_first"}
	fmt.Println("odds ratios (1.0 = no change):")
	for i := 1; i < len(weights); i++ {
		fmt.Printf("  %s = %.4f\n", labels[i-1], math.Exp(weights[i]))
	}
}

func printPredictedRates(weights []float64, plyScale, meanPly float64, plies []int) {
	fmt.Println("predicted sente win rates at the mean crossing ply:")
	fmt.Printf("  first-cross=1: %.3f\n", predict(weights, 1, 0))
	fmt.Printf("  first-cross=0: %.3f\n", predict(weights, 0, 0))
	if len(plies) == 0 {
		return
	}
	fmt.Println("predicted sente win rates by crossing ply (first-cross=1):")
	for _, ply := range plies {
		plyCentered := (float64(ply) - meanPly) / plyScale
		fmt.Printf("  ply=%d: win_rate=%.3f\n", ply, predict(weights, 1, plyCentered))
	}
}

func predict(weights []float64, firstCross, plyCentered float64) float64 {
	x := []float64{1.0, firstCross, plyCentered, plyCentered * firstCross}
	return sigmoid(dot(weights, x))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

func dot(a []float64, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func parseIntList(raw string) ([]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		value, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("invalid plies entry: %s", segment)
		}
		values = append(values, value)
	}
	return values, nil
}
