package window

import (
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/repository"
)

// sideLine holds one side's counting totals over some set of games.
type sideLine struct {
	pts, fgm, fga, fg3m, fg3a, ftm, fta float64
	orb, drb, reb                       float64
	ast, stl, blk, tov, pf              float64
}

func addSide(s *sideLine, t *store.TeamGameStats) {
	s.pts += float64(t.Points)
	s.fgm += float64(t.FieldGoalsMade)
	s.fga += float64(t.FieldGoalsAttempted)
	s.fg3m += float64(t.ThreePointersMade)
	s.fg3a += float64(t.ThreePointersAttempted)
	s.ftm += float64(t.FreeThrowsMade)
	s.fta += float64(t.FreeThrowsAttempted)
	s.orb += float64(t.OffensiveRebounds)
	s.drb += float64(t.DefensiveRebounds)
	s.reb += float64(t.Rebounds)
	s.ast += float64(t.Assists)
	s.stl += float64(t.Steals)
	s.blk += float64(t.Blocks)
	s.tov += float64(t.Turnovers)
	s.pf += float64(t.PersonalFouls)
}

// line is the unit every statistic is derived from: either one game
// (games == 1) or the summed totals of a window (raw reduction). Keeping
// both sides lets "_net" statistics evaluate the opponents' view of the same
// games by flipping.
type line struct {
	team, opp   sideLine
	games, wins float64
}

func (l line) flip() line {
	return line{team: l.opp, opp: l.team, games: l.games, wins: l.games - l.wins}
}

func (l line) possessions() float64 {
	return l.team.fga - l.team.orb + l.team.tov + 0.44*l.team.fta
}

func gameLine(log *repository.TeamGameLog) line {
	l := line{games: 1}
	if log.Won() {
		l.wins = 1
	}
	addSide(&l.team, log.Team)
	addSide(&l.opp, log.Opponent)
	return l
}

func totalLine(logs []*repository.TeamGameLog) line {
	var l line
	for _, log := range logs {
		l.games++
		if log.Won() {
			l.wins++
		}
		addSide(&l.team, log.Team)
		addSide(&l.opp, log.Opponent)
	}
	return l
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// statFuncs derive each statistic from a line. Counting statistics are
// per-game-normalized so that the raw reduction (one total line) and the avg
// reduction (mean of single-game lines) coincide for them; rate statistics
// intentionally differ between the two reductions.
var statFuncs = map[string]func(line) float64{
	"points":       func(l line) float64 { return safeDiv(l.team.pts, l.games) },
	"wins":         func(l line) float64 { return safeDiv(l.wins, l.games) },
	"margin":       func(l line) float64 { return safeDiv(l.team.pts-l.opp.pts, l.games) },
	"rebounds":     func(l line) float64 { return safeDiv(l.team.reb, l.games) },
	"off_rebounds": func(l line) float64 { return safeDiv(l.team.orb, l.games) },
	"def_rebounds": func(l line) float64 { return safeDiv(l.team.drb, l.games) },
	"assists":      func(l line) float64 { return safeDiv(l.team.ast, l.games) },
	"steals":       func(l line) float64 { return safeDiv(l.team.stl, l.games) },
	"blocks":       func(l line) float64 { return safeDiv(l.team.blk, l.games) },
	"turnovers":    func(l line) float64 { return safeDiv(l.team.tov, l.games) },
	"fouls":        func(l line) float64 { return safeDiv(l.team.pf, l.games) },
	"fgm":          func(l line) float64 { return safeDiv(l.team.fgm, l.games) },
	"fga":          func(l line) float64 { return safeDiv(l.team.fga, l.games) },
	"fg3m":         func(l line) float64 { return safeDiv(l.team.fg3m, l.games) },
	"fg3a":         func(l line) float64 { return safeDiv(l.team.fg3a, l.games) },
	"ftm":          func(l line) float64 { return safeDiv(l.team.ftm, l.games) },
	"fta":          func(l line) float64 { return safeDiv(l.team.fta, l.games) },
	"possessions":  func(l line) float64 { return safeDiv(l.possessions(), l.games) },
	"pace":         func(l line) float64 { return safeDiv(l.possessions(), l.games) },

	"fg_pct":  func(l line) float64 { return safeDiv(l.team.fgm, l.team.fga) },
	"fg3_pct": func(l line) float64 { return safeDiv(l.team.fg3m, l.team.fg3a) },
	"ft_pct":  func(l line) float64 { return safeDiv(l.team.ftm, l.team.fta) },
	"efg_pct": func(l line) float64 { return safeDiv(l.team.fgm+0.5*l.team.fg3m, l.team.fga) },
	"ts_pct":  func(l line) float64 { return safeDiv(l.team.pts, 2*(l.team.fga+0.44*l.team.fta)) },

	"assist_ratio": func(l line) float64 {
		return safeDiv(100*l.team.ast, l.team.fga+0.44*l.team.fta+l.team.ast+l.team.tov)
	},
	"turnover_ratio": func(l line) float64 {
		return safeDiv(100*l.team.tov, l.team.fga+0.44*l.team.fta+l.team.ast+l.team.tov)
	},
	"off_rating": func(l line) float64 { return safeDiv(100*l.team.pts, l.possessions()) },
	"def_rating": func(l line) float64 { return safeDiv(100*l.opp.pts, l.possessions()) },
}
