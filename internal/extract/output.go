package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes extraction rows as a training CSV: fixed label columns
// first, then one column per feature name in the given order. Missing
// feature values (failed features) are written as 0.
func WriteCSV(w io.Writer, features []string, rows []*Row) error {
	cw := csv.NewWriter(w)

	header := append([]string{"game_id", "game_date", "home_team_id", "away_team_id", "home_win", "margin"}, features...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		if row == nil {
			continue
		}
		record[0] = strconv.Itoa(row.GameID)
		record[1] = row.GameDate.Format("2006-01-02")
		record[2] = strconv.Itoa(row.HomeTeamID)
		record[3] = strconv.Itoa(row.AwayTeamID)
		record[4] = strconv.Itoa(row.HomeWin)
		record[5] = strconv.Itoa(row.Margin)
		for i, name := range features {
			record[6+i] = strconv.FormatFloat(row.Features[name], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row for game %d: %w", row.GameID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
