package vagkoll

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/enescakir/emoji"
	"github.com/kataras/tablewriter"
	"github.com/lensesio/tableprinter"
)

type eventRow struct {
	Severity string `header:"sev"`
	Title    string `header:"event"`
	County   string `header:"county"`
	Types    string `header:"type"`
	Updated  string `header:"updated"`
	Ends     string `header:"ends"`
}

var severityEmoji = map[string]emoji.Emoji{
	SeverityNone:      emoji.WhiteCircle,
	SeveritySmall:     emoji.YellowCircle,
	SeverityLarge:     emoji.OrangeCircle,
	SeverityVeryLarge: emoji.RedCircle,
}

// PrintViewForever renders the current derived view as a table every
// refreshRate seconds, until ctx ends.
func PrintViewForever(ctx context.Context, eng *Engine, refreshRate int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(refreshRate) * time.Second):
			PrintView(eng)
		}
	}
}

// PrintView renders the engine's filtered view, most severe first; ties
// keep the engine's most-recent-first order.
func PrintView(eng *Engine) {
	now := time.Now()
	view := eng.View()
	sort.SliceStable(view, func(i, j int) bool {
		return SeverityRank[view[i].SeverityText] > SeverityRank[view[j].SeverityText]
	})

	rows := make([]eventRow, 0, len(view))
	for _, e := range view {
		sev := string(severityEmoji[e.SeverityText])
		if sev == "" {
			sev = "?"
		}

		county := CountyName(e.CountyNo)
		if e.CountyNo == CountyNational {
			county = fmt.Sprintf("%v hela landet", emoji.GlobeShowingEuropeAfrica)
		}

		ends := "tills vidare"
		if e.EndTime != nil {
			ends = e.EndTime.Format("02 Jan 15:04")
		}

		rows = append(rows, eventRow{
			Severity: sev,
			Title:    truncate(e.Title, 48),
			County:   county,
			Types:    e.MessageType,
			Updated:  fmt.Sprintf("%ds ago", int(now.Sub(e.EffectiveTime()).Seconds())),
			Ends:     ends,
		})
	}

	printer := tableprinter.New(os.Stdout)
	printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
	printer.CenterSeparator = "│"
	printer.ColumnSeparator = "│"
	printer.RowSeparator = "─"
	printer.HeaderBgColor = tablewriter.BgBlackColor
	printer.HeaderFgColor = tablewriter.FgGreenColor

	printer.Print(rows)

	status := eng.Status()
	conn := string(emoji.GreenCircle) + " live"
	if !status.Connected {
		conn = string(emoji.RedCircle) + " disconnected"
	}
	fmt.Printf("%s │ %d shown / %d held │ offset %d\n", conn, len(rows), status.StoreSize, status.Offset)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
