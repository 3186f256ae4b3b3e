// Package feature defines the canonical feature-name grammar and the
// assembler that turns a list of feature names into a name-keyed vector.
//
// A feature name has the form
//
//	statistic|window|reduction|perspective[|side]
//
// e.g. "points|games_10|avg|diff" or "fg_pct|season|raw|home|side".
// Windows are "season", "games_N", "days_N", "months_N", or a blend such as
// "blend:season:0.8/games_10:0.2" whose weights must sum to 1.
package feature

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Reduction selects how a statistic is reduced over a window: per-game then
// averaged, or summed into totals and derived once.
type Reduction string

const (
	ReduceAvg Reduction = "avg"
	ReduceRaw Reduction = "raw"
)

// Perspective selects whose value a feature reports.
type Perspective string

const (
	PerspectiveHome Perspective = "home"
	PerspectiveAway Perspective = "away"
	PerspectiveDiff Perspective = "diff"
)

// WindowKind enumerates the supported window shapes.
type WindowKind int

const (
	WindowSeason WindowKind = iota
	WindowGames
	WindowDays
	WindowMonths
	WindowBlend
)

// Window is a parsed time window. For WindowGames/WindowDays/WindowMonths, N
// carries the count; for WindowBlend, Terms carries the weighted sub-windows.
type Window struct {
	Kind  WindowKind
	N     int
	Terms []BlendTerm
}

// BlendTerm is one weighted sub-window of a blend.
type BlendTerm struct {
	Window Window
	Weight float64
}

// String renders the window back into its grammar form.
func (w Window) String() string {
	switch w.Kind {
	case WindowSeason:
		return "season"
	case WindowGames:
		return fmt.Sprintf("games_%d", w.N)
	case WindowDays:
		return fmt.Sprintf("days_%d", w.N)
	case WindowMonths:
		return fmt.Sprintf("months_%d", w.N)
	case WindowBlend:
		parts := make([]string, len(w.Terms))
		for i, t := range w.Terms {
			parts[i] = fmt.Sprintf("%s:%g", t.Window.String(), t.Weight)
		}
		return "blend:" + strings.Join(parts, "/")
	}
	return "unknown"
}

// Spec is the parsed, canonical representation of one feature name. It is a
// pure value type; two specs with equal fields are the same feature.
type Spec struct {
	Name        string
	Statistic   string
	Net         bool
	PERSlot     int
	Window      Window
	Reduction   Reduction
	Perspective Perspective
	SideSplit   bool
}

// Base returns the statistic with any "_net" suffix stripped.
func (s Spec) Base() string {
	return strings.TrimSuffix(s.Statistic, "_net")
}

// IsPER reports whether the feature dispatches to the rating engine rather
// than the window engine.
func (s Spec) IsPER() bool {
	return strings.HasPrefix(s.Statistic, "per_")
}

// InvalidFeatureNameError reports a feature name that does not parse,
// identifying the offending token.
type InvalidFeatureNameError struct {
	Name   string
	Token  string
	Reason string
}

func (e *InvalidFeatureNameError) Error() string {
	return fmt.Sprintf("invalid feature name %q: %s (token %q)", e.Name, e.Reason, e.Token)
}

const blendWeightTolerance = 1e-6

// windowStatistics are the statistics the window engine can evaluate over a
// team's game logs. The bool marks whether an opponent-subtracting "_net"
// variant is meaningful.
var windowStatistics = map[string]bool{
	"points":         true,
	"wins":           false,
	"margin":         false,
	"rebounds":       true,
	"off_rebounds":   true,
	"def_rebounds":   true,
	"assists":        true,
	"steals":         true,
	"blocks":         true,
	"turnovers":      true,
	"fouls":          true,
	"fgm":            true,
	"fga":            true,
	"fg3m":           true,
	"fg3a":           true,
	"ftm":            true,
	"fta":            true,
	"possessions":    true,
	"rest_days":      false,
	"fg_pct":         true,
	"fg3_pct":        true,
	"ft_pct":         true,
	"efg_pct":        true,
	"ts_pct":         true,
	"assist_ratio":   true,
	"turnover_ratio": true,
	"pace":           false,
	"off_rating":     false,
	"def_rating":     false,
}

// perStatistics are the rating-engine features (slots handled separately).
var perStatistics = map[string]struct{}{
	"per_avg":      {},
	"per_weighted": {},
	"per_starters": {},
	"per_recency":  {},
}

// Statistics returns every supported statistic name, sorted: base window
// statistics, their net variants, and the rating family (slot statistics are
// represented as "per_slot_N").
func Statistics() []string {
	names := make([]string, 0, len(windowStatistics)*2+len(perStatistics)+1)
	for name, netOK := range windowStatistics {
		names = append(names, name)
		if netOK {
			names = append(names, name+"_net")
		}
	}
	for name := range perStatistics {
		names = append(names, name)
	}
	names = append(names, "per_slot_N")
	sort.Strings(names)
	return names
}

// Parse decodes a canonical feature name. It is total over the grammar: any
// name either yields a Spec or an *InvalidFeatureNameError naming the bad
// token; it never panics.
func Parse(name string) (Spec, error) {
	tokens := strings.Split(name, "|")
	if len(tokens) != 4 && len(tokens) != 5 {
		return Spec{}, &InvalidFeatureNameError{
			Name: name, Token: name,
			Reason: fmt.Sprintf("expected 4 or 5 |-separated tokens, got %d", len(tokens)),
		}
	}

	spec := Spec{Name: name}

	stat := tokens[0]
	slot, err := parseStatistic(name, stat)
	if err != nil {
		return Spec{}, err
	}
	spec.Statistic = stat
	spec.Net = strings.HasSuffix(stat, "_net")
	spec.PERSlot = slot

	window, err := parseWindow(name, tokens[1])
	if err != nil {
		return Spec{}, err
	}
	spec.Window = window

	switch Reduction(tokens[2]) {
	case ReduceAvg, ReduceRaw:
		spec.Reduction = Reduction(tokens[2])
	default:
		return Spec{}, &InvalidFeatureNameError{
			Name: name, Token: tokens[2],
			Reason: "reduction must be 'avg' or 'raw'",
		}
	}

	switch Perspective(tokens[3]) {
	case PerspectiveHome, PerspectiveAway, PerspectiveDiff:
		spec.Perspective = Perspective(tokens[3])
	default:
		return Spec{}, &InvalidFeatureNameError{
			Name: name, Token: tokens[3],
			Reason: "perspective must be 'home', 'away', or 'diff'",
		}
	}

	if len(tokens) == 5 {
		if tokens[4] != "side" {
			return Spec{}, &InvalidFeatureNameError{
				Name: name, Token: tokens[4],
				Reason: "fifth token must be 'side'",
			}
		}
		spec.SideSplit = true
	}

	// Rating features are computed from season aggregates; any other window
	// would silently change their meaning, so the grammar rejects it.
	if spec.IsPER() && spec.Window.Kind != WindowSeason {
		return Spec{}, &InvalidFeatureNameError{
			Name: name, Token: tokens[1],
			Reason: "rating statistics require the 'season' window",
		}
	}
	if spec.IsPER() && spec.SideSplit {
		return Spec{}, &InvalidFeatureNameError{
			Name: name, Token: "side",
			Reason: "rating statistics do not support a side split",
		}
	}

	return spec, nil
}

// parseStatistic validates the statistic token and returns the slot index for
// per_slot_N statistics (zero otherwise).
func parseStatistic(name, stat string) (int, error) {
	if rest, ok := strings.CutPrefix(stat, "per_slot_"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return 0, &InvalidFeatureNameError{
				Name: name, Token: stat,
				Reason: "slot index must be a positive integer",
			}
		}
		return n, nil
	}

	if _, ok := perStatistics[stat]; ok {
		return 0, nil
	}

	base := strings.TrimSuffix(stat, "_net")
	netOK, known := windowStatistics[base]
	if !known {
		return 0, &InvalidFeatureNameError{
			Name: name, Token: stat,
			Reason: "unknown statistic",
		}
	}
	if base != stat && !netOK {
		return 0, &InvalidFeatureNameError{
			Name: name, Token: stat,
			Reason: "statistic has no net variant",
		}
	}

	return 0, nil
}

func parseWindow(name, token string) (Window, error) {
	if rest, ok := strings.CutPrefix(token, "blend:"); ok {
		return parseBlend(name, rest)
	}
	return parseSimpleWindow(name, token)
}

func parseSimpleWindow(name, token string) (Window, error) {
	if token == "season" {
		return Window{Kind: WindowSeason}, nil
	}

	kinds := map[string]WindowKind{
		"games":  WindowGames,
		"days":   WindowDays,
		"months": WindowMonths,
	}
	prefix, count, found := strings.Cut(token, "_")
	if found {
		if kind, ok := kinds[prefix]; ok {
			n, err := strconv.Atoi(count)
			if err != nil || n < 1 {
				return Window{}, &InvalidFeatureNameError{
					Name: name, Token: token,
					Reason: "window count must be a positive integer",
				}
			}
			return Window{Kind: kind, N: n}, nil
		}
	}

	return Window{}, &InvalidFeatureNameError{
		Name: name, Token: token,
		Reason: "window must be 'season', 'games_N', 'days_N', 'months_N', or 'blend:...'",
	}
}

// parseBlend decodes "season:0.8/games_10:0.2". The blend is part of the
// feature name, so it is parsed losslessly: the exact weights drive the
// weighted sum and must total 1.
func parseBlend(name, body string) (Window, error) {
	parts := strings.Split(body, "/")
	if len(parts) < 2 {
		return Window{}, &InvalidFeatureNameError{
			Name: name, Token: "blend:" + body,
			Reason: "blend requires at least two weighted windows",
		}
	}

	var terms []BlendTerm
	var total float64
	for _, part := range parts {
		idx := strings.LastIndex(part, ":")
		if idx < 0 {
			return Window{}, &InvalidFeatureNameError{
				Name: name, Token: part,
				Reason: "blend term must be 'window:weight'",
			}
		}

		sub, err := parseSimpleWindow(name, part[:idx])
		if err != nil {
			return Window{}, err
		}

		weight, err := strconv.ParseFloat(part[idx+1:], 64)
		if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return Window{}, &InvalidFeatureNameError{
				Name: name, Token: part,
				Reason: "blend weight must be a finite number",
			}
		}

		terms = append(terms, BlendTerm{Window: sub, Weight: weight})
		total += weight
	}

	if math.Abs(total-1.0) > blendWeightTolerance {
		return Window{}, &InvalidFeatureNameError{
			Name: name, Token: "blend:" + body,
			Reason: fmt.Sprintf("blend weights sum to %g, want 1", total),
		}
	}

	return Window{Kind: WindowBlend, Terms: terms}, nil
}
